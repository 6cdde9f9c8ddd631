package config

import (
    "log"
    "os"

    "gopkg.in/yaml.v2"
)

type Config struct {
    Server struct {
        Port string `yaml:"port"`
    } `yaml:"server"`
    MySQL struct {
        DSN string `yaml:"dsn"`
    } `yaml:"mysql"`
    Gateway struct {
        TextAPI   string `yaml:"text_api"`   // chat completion 接口（brainstorm / script）
        ImageAPI  string `yaml:"image_api"`  // 文生图接口
        SpeechAPI string `yaml:"speech_api"` // TTS 接口，返回裸 PCM
        APIKey    string `yaml:"api_key"`
        Model     string `yaml:"model"`
        Voice     string `yaml:"voice"`
    } `yaml:"gateway"`
    Redis struct {
        Addr     string `yaml:"addr"`
        Password string `yaml:"password"`
    } `yaml:"redis"`
    MinIO struct {
        Endpoint  string `yaml:"endpoint"`
        AccessKey string `yaml:"access_key"`
        SecretKey string `yaml:"secret_key"`
        Bucket    string `yaml:"bucket"`
        UseSSL    bool   `yaml:"use_ssl"`
        Domain    string `yaml:"domain"`
    } `yaml:"minio"`
    Export struct {
        Width    int     `yaml:"width"`     // 默认 720
        Height   int     `yaml:"height"`    // 默认 1280（竖屏）
        FPS      int     `yaml:"fps"`       // 默认 30
        DwellSec float64 `yaml:"dwell_sec"` // 每张分镜停留秒数，默认 1s
    } `yaml:"export"`
}

var AppConfig *Config

func InitConfig() {
    f, err := os.Open("config/config.yaml")
    if err != nil {
        log.Fatalf("配置文件读取失败: %v", err)
    }
    defer f.Close()
    decoder := yaml.NewDecoder(f)
    AppConfig = &Config{}
    if err := decoder.Decode(AppConfig); err != nil {
        log.Fatalf("配置文件解析失败: %v", err)
    }

    // 密钥类配置允许环境变量覆盖（本地 .env 或部署环境注入）
    if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
        AppConfig.Gateway.APIKey = v
    }
    if v := os.Getenv("MYSQL_DSN"); v != "" {
        AppConfig.MySQL.DSN = v
    }
    if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
        AppConfig.MinIO.AccessKey = v
    }
    if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
        AppConfig.MinIO.SecretKey = v
    }

    applyExportDefaults(AppConfig)
}

func applyExportDefaults(cfg *Config) {
    if cfg.Export.Width <= 0 {
        cfg.Export.Width = 720
    }
    if cfg.Export.Height <= 0 {
        cfg.Export.Height = 1280
    }
    if cfg.Export.FPS <= 0 {
        cfg.Export.FPS = 30
    }
    if cfg.Export.DwellSec <= 0 {
        cfg.Export.DwellSec = 1.0
    }
}
