// Package config resolves the layered pipeline configuration.
//
// Three immutable layers merge, in order, into one resolved Project
// struct per command invocation: built-in defaults, the user override
// file, and the per-project file. No component re-reads configuration
// mid-operation; the resolved struct is passed down.
//
// Layout under the pipeline home ($OCP_HOME, default ~/.config/ocp):
//
//	config.yaml          user overrides (optional)
//	projects/<name>.yaml per-project configuration
//	state/<name>.json    the project's state store
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrProjectNotFound is returned when the named project has no
// configuration file.
var ErrProjectNotFound = errors.New("project not found")

// TrackerConfig identifies the system-of-record repository.
// Values are external-facing and validated lazily by the tracker client.
type TrackerConfig struct {
	Owner         string `mapstructure:"owner"`
	Repo          string `mapstructure:"repo"`
	Token         string `mapstructure:"token"`
	MergeStrategy string `mapstructure:"merge_strategy"`
}

// BoardConfig identifies the chat surfaces and the two sender identities.
type BoardConfig struct {
	Channel       string `mapstructure:"channel"`        // hosts issue threads
	ReviewChannel string `mapstructure:"review_channel"` // review event copies
	DeployChannel string `mapstructure:"deploy_channel"` // deploy outcomes
	ActorToken    string `mapstructure:"actor_token"`
	ObserverToken string `mapstructure:"observer_token"`
}

// WorkersConfig declares the assignment pool.
type WorkersConfig struct {
	Roster  []string `mapstructure:"roster"`
	Default string   `mapstructure:"default"` // degenerate pool when roster is empty
}

// DrafterConfig tunes the issue drafter.
type DrafterConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DeployConfig lists the post-merge deploy steps.
type DeployConfig struct {
	Steps       []string      `mapstructure:"steps"`
	Dir         string        `mapstructure:"dir"`
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// Project is the fully resolved configuration handed to every component.
type Project struct {
	Name        string        `mapstructure:"-"`
	Tracker     TrackerConfig `mapstructure:"tracker"`
	Board       BoardConfig   `mapstructure:"board"`
	Workers     WorkersConfig `mapstructure:"workers"`
	Drafter     DrafterConfig `mapstructure:"drafter"`
	Deploy      DeployConfig  `mapstructure:"deploy"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	StateDir    string        `mapstructure:"-"`
}

// Home returns the pipeline home directory.
func Home() (string, error) {
	if h := os.Getenv("OCP_HOME"); h != "" {
		return h, nil
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(cfg, "ocp"), nil
}

// Load resolves the configuration for one project.
func Load(project string) (*Project, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	return loadFrom(home, project)
}

func loadFrom(home, project string) (*Project, error) {
	if project == "" {
		return nil, fmt.Errorf("project name is required")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	// Layer 2: user overrides, optional.
	userCfg := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(userCfg); err == nil {
		v.SetConfigFile(userCfg)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", userCfg, err)
		}
	}

	// Layer 3: per-project values, required.
	projCfg := filepath.Join(home, "projects", project+".yaml")
	if _, err := os.Stat(projCfg); err != nil {
		return nil, fmt.Errorf("%w: %s (expected %s)", ErrProjectNotFound, project, projCfg)
	}
	v.SetConfigFile(projCfg)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", projCfg, err)
	}

	// Environment wins over files for secrets (OCP_TRACKER_TOKEN etc.).
	v.SetEnvPrefix("OCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"tracker.token", "board.actor_token", "board.observer_token", "drafter.api_key"} {
		_ = v.BindEnv(key)
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	p.Name = project
	p.StateDir = filepath.Join(home, "state")

	if p.Tracker.Owner == "" || p.Tracker.Repo == "" {
		return nil, fmt.Errorf("project %s: tracker.owner and tracker.repo are required", project)
	}
	return &p, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker.merge_strategy", "squash")
	v.SetDefault("workers.default", "worker-0")
	v.SetDefault("drafter.timeout", 30*time.Second)
	v.SetDefault("deploy.step_timeout", 10*time.Minute)
	v.SetDefault("call_timeout", 30*time.Second)
}

const projectSkeleton = `# openclaw pipeline project configuration
tracker:
  owner: %s
  repo: %s
  # token: read from OCP_TRACKER_TOKEN when unset
  merge_strategy: squash

board:
  channel: ""
  review_channel: ""
  deploy_channel: ""
  # actor_token / observer_token: read from OCP_BOARD_* when unset

workers:
  roster: []
  default: worker-0

drafter:
  model: ""
  timeout: 30s

deploy:
  steps: []
`

// Init writes the per-project skeleton and ensures the state directory
// exists. Fails if the project already has a configuration file.
func Init(project, owner, repo string) (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(home, "projects"), 0750); err != nil {
		return "", fmt.Errorf("failed to create projects dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(home, "state"), 0750); err != nil {
		return "", fmt.Errorf("failed to create state dir: %w", err)
	}

	path := filepath.Join(home, "projects", project+".yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("project %s already exists at %s", project, path)
	}
	content := fmt.Sprintf(projectSkeleton, owner, repo)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write project config: %w", err)
	}
	return path, nil
}
