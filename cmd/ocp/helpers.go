package main

import (
	"os"
	"strconv"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/board"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/config"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/deployer"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/drafter"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/lifecycle"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/pool"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/router"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/statestore"
	"github.com/Obsolete-Robot/openclaw-pipeline/internal/tracker"
)

// loadProject resolves configuration for the --project flag (falling
// back to $OCP_PROJECT) or dies trying.
func loadProject() *config.Project {
	name := projectName
	if name == "" {
		name = os.Getenv("OCP_PROJECT")
	}
	if name == "" {
		fatalUsage("--project is required (or set $OCP_PROJECT)")
	}
	cfg, err := config.Load(name)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func openStore(cfg *config.Project) *statestore.Store {
	store, err := statestore.Open(cfg.StateDir, cfg.Name)
	if err != nil {
		fatal(err)
	}
	return store
}

func newAllocator(cfg *config.Project) *pool.Allocator {
	return pool.New(cfg.Workers.Roster, cfg.Workers.Default)
}

// newEngine wires the full engine with all collaborators, for commands
// that transition state.
func newEngine(cfg *config.Project) *lifecycle.Engine {
	store := openStore(cfg)

	gh := tracker.NewClient(cfg.Tracker.Token, cfg.Tracker.Owner, cfg.Tracker.Repo)

	b, err := board.New(cfg.Board.ActorToken, cfg.Board.ObserverToken, cfg.Board.Channel, cfg.CallTimeout)
	if err != nil {
		fatal(err)
	}
	rt := router.New(b, router.Destinations{
		ReviewChannel: cfg.Board.ReviewChannel,
		DeployChannel: cfg.Board.DeployChannel,
	})

	dr := drafter.New(cfg.Drafter.APIKey, cfg.Drafter.Model, cfg.Drafter.Timeout)
	dep := deployer.New(cfg.Deploy.Dir, cfg.Deploy.StepTimeout)

	return lifecycle.New(store, gh, dr, dep, rt, newAllocator(cfg), lifecycle.Options{
		Repo:          cfg.Tracker.Owner + "/" + cfg.Tracker.Repo,
		MergeStrategy: cfg.Tracker.MergeStrategy,
		DeploySteps:   cfg.Deploy.Steps,
	})
}

// newLocalEngine wires an engine without external collaborators, for
// read-only commands and worker pause/resume which touch only the store.
func newLocalEngine(cfg *config.Project) *lifecycle.Engine {
	return lifecycle.New(openStore(cfg), nil, nil, nil, nil, newAllocator(cfg), lifecycle.Options{})
}

// parseIssueNumber parses a positional issue argument.
func parseIssueNumber(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		fatalUsage("invalid issue number: %s", arg)
	}
	return n
}
