// Package sh provides an interactive shell to diagnose an actuator bus.
package sh

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robocore/pkg/dynamixel"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell *ishell.Shell
	Chain *dynamixel.DaisyChain
	Model dynamixel.Model
}

const shellKey = "$shell"

var evalOnly bool

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// New creates a new shell over chain. Actuators are assumed to be model.
func New(chain *dynamixel.DaisyChain, model dynamixel.Model) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Chain:       chain,
		Model:       model,
	}
	s.Shell = ishell.New()
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(model.Name + " > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd.ishellCmd())
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Exec runs a command by name and returns its output.
func (s *Shell) Exec(name string, args ...string) (string, error) {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd.Run(s, args)
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd.Run(s, args)
			}
		}
	}
	return "", fmt.Errorf("unknown command %q", name)
}

// Actuator gets the actuator addressed by the ID arg.
func (s *Shell) Actuator(arg string) (*dynamixel.Actuator, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	if err := dynamixel.CheckID(id); err != nil {
		return nil, err
	}
	return dynamixel.NewActuator(s.Chain, id, s.Model), nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		out, err := s.Exec(args[0], args[1:]...)
		if err != nil {
			log.Fatalln(err)
		}
		if out != "" {
			fmt.Println(out)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func parseID(arg string) (byte, error) {
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil || v > uint64(dynamixel.MaxID) {
		return 0, fmt.Errorf("invalid ID %q", arg)
	}
	return byte(v), nil
}

func parseSide(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	switch side := strings.ToLower(args[0]); side {
	case "cw", "ccw":
		return side, nil
	}
	return "", fmt.Errorf("invalid side %q, expect cw or ccw", args[0])
}

func parseOnOff(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q, expect on or off", arg)
}
