package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/tasks"
)

// projectConfigName is the config file written by `fanout init`.
const projectConfigName = "fanout.toml"

// initCommand writes an example task file and project config.
func initCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fanout init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite existing files")
	skipConfig := fs.Bool("skip-config", false, "Do not write "+projectConfigName)

	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := tasksPath(cfg, fs.Args())
	if err != nil {
		return err
	}

	write, err := shouldWrite(path, *force)
	if err != nil {
		return err
	}
	if write {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating task file directory: %w", err)
		}
		if err := tasks.Example().Save(path); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote %s\n", path)
	} else {
		fmt.Printf("⚠️  %s exists (use -force to overwrite)\n", path)
	}

	if *skipConfig {
		return nil
	}
	configPath := filepath.Join(cfg.ProjectRoot, projectConfigName)
	write, err = shouldWrite(configPath, *force)
	if err != nil {
		return err
	}
	if !write {
		fmt.Printf("⚠️  %s exists (use -force to overwrite)\n", configPath)
		return nil
	}
	if err := os.WriteFile(configPath, []byte(config.ExampleConfig()), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("✅ Wrote %s\n", configPath)
	return nil
}

func shouldWrite(path string, force bool) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return true, nil
	case err != nil:
		return false, err
	case info.IsDir():
		return false, fmt.Errorf("%s is a directory", path)
	}
	return force, nil
}
