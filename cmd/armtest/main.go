// Package main holds manual hardware checks: a full-travel servo sweep and a
// joystick state dump. Meant to be run by hand against a wired-up arm.
package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"armbot"
)

var logger = logging.NewLogger("armtest")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=path to JSON config file"`
	Sweep      string `flag:"sweep,usage=sweep one joint servo (shoulder, elbow or gripper)"`
	Joystick   bool   `flag:"joystick,usage=dump raw and derived joystick states"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Sweep == "" && !argsParsed.Joystick {
		return errors.New("nothing to do: pass -sweep or -joystick")
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

	if argsParsed.Sweep != "" {
		return sweepServo(ctx, cfg, rig, argsParsed.Sweep)
	}
	return dumpJoystick(ctx, cfg, rig)
}

// sweepServo walks one joint to its forward limit, then its backward limit,
// then back to a bound midpoint, stepping once per control interval.
func sweepServo(ctx context.Context, cfg *armbot.Config, rig *armbot.Rig, joint string) error {
	var out armbot.DutyActuator
	switch joint {
	case "shoulder":
		out = rig.Shoulder
	case "elbow":
		out = rig.Elbow
	case "gripper":
		out = rig.Gripper
	default:
		return errors.New("joint must be shoulder, elbow or gripper")
	}

	servo, err := armbot.NewServo(joint, cfg.Servo, out, logger)
	if err != nil {
		return err
	}

	for _, forward := range []bool{true, false} {
		if forward {
			servo.Forward()
		} else {
			servo.Backward()
		}
		for {
			moved, err := servo.Step(cfg.Servo.Step)
			if err != nil {
				return err
			}
			if !moved {
				break
			}
			angle, err := servo.Angle()
			if err != nil {
				return err
			}
			logger.Infof("%s at %.1f degrees", joint, angle)
			if !utils.SelectContextOrWait(ctx, cfg.Hardware.LoopInterval()) {
				return ctx.Err()
			}
		}
		logger.Infof("%s reached %s limit", joint, direction(forward))
	}
	return nil
}

func direction(forward bool) string {
	if forward {
		return "forward"
	}
	return "backward"
}

// dumpJoystick prints the raw and derived joystick states until cancelled.
func dumpJoystick(ctx context.Context, cfg *armbot.Config, rig *armbot.Rig) error {
	gamepad, err := armbot.NewGamepad(cfg.Joystick, rig.Axes, logger)
	if err != nil {
		return err
	}

	for {
		raw, err := gamepad.ReadRawState()
		if err != nil {
			return err
		}
		state, err := gamepad.ReadState(cfg.Arm.StepSize)
		if err != nil {
			return err
		}
		logger.Infof("raw=%v state=%v", raw, state)
		if !utils.SelectContextOrWait(ctx, 100*time.Millisecond) {
			return ctx.Err()
		}
	}
}
