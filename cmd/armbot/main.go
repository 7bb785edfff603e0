// Package main runs the joystick-driven arm control loop.
package main

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"armbot"
)

var logger = logging.NewLogger("armbot")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=path to JSON config file"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := armbot.LoadConfig(argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}

	registry := armbot.NewBusRegistry()
	defer func() {
		err = multierr.Combine(err, registry.Close())
	}()

	rig, err := armbot.SetupRig(cfg, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, rig.Close())
	}()

	bot, err := armbot.BuildArm(cfg, rig, logger)
	if err != nil {
		return err
	}

	logger.Info("arm bot initialized")

	if err := bot.Run(ctx, cfg.Hardware.LoopInterval()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
