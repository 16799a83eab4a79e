package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr        string
	Env             string
	OutputDir       string
	SkillsDir       string
	ScriptsDir      string
	CanvasWSURL     string
	CanvasURL       string
	DashboardURL    string
	ApprovalTimeout time.Duration
	StepTimeoutSecs int
}

// Load reads configuration from the environment. Every key has a
// working local default so the engine runs with zero configuration.
func Load() Config {
	v := viper.New()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("env", "dev")
	v.SetDefault("output_dir", "output/workflows")
	v.SetDefault("skills_dir", "skills")
	v.SetDefault("scripts_dir", "scripts")
	v.SetDefault("canvas_ws_url", "ws://localhost:3002/ws")
	v.SetDefault("canvas_url", "http://localhost:3001")
	v.SetDefault("dashboard_url", "http://localhost:3000")
	v.SetDefault("approval_timeout", "5m")
	v.SetDefault("step_timeout_secs", 600)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return Config{
		HTTPAddr:        v.GetString("http_addr"),
		Env:             v.GetString("env"),
		OutputDir:       v.GetString("output_dir"),
		SkillsDir:       v.GetString("skills_dir"),
		ScriptsDir:      v.GetString("scripts_dir"),
		CanvasWSURL:     v.GetString("canvas_ws_url"),
		CanvasURL:       v.GetString("canvas_url"),
		DashboardURL:    v.GetString("dashboard_url"),
		ApprovalTimeout: v.GetDuration("approval_timeout"),
		StepTimeoutSecs: v.GetInt("step_timeout_secs"),
	}
}
