package sh

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robocore/pkg/dynamixel"
)

// Cmd is a shell command.
type Cmd struct {
	Name    string
	Aliases []string
	Help    string
	// MinArgs is the number of required arguments.
	MinArgs int
	Run     func(s *Shell, args []string) (string, error)
}

func (cmd *Cmd) ishellCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name:    cmd.Name,
		Aliases: cmd.Aliases,
		Help:    cmd.Help,
		Func: func(c *ishell.Context) {
			out, err := ShellFrom(c).Exec(cmd.Name, c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			if out != "" {
				c.Println(out)
			}
		},
	}
}

func (cmd *Cmd) run(fn func(*Shell, []string) (string, error)) func(*Shell, []string) (string, error) {
	return func(s *Shell, args []string) (string, error) {
		if len(args) < cmd.MinArgs {
			return "", fmt.Errorf("usage: %s %s", cmd.Name, cmd.Help)
		}
		return fn(s, args)
	}
}

var commands []*Cmd

// AddCmds registers commands.
func AddCmds(cmds ...*Cmd) {
	for _, cmd := range cmds {
		cmd.Run = cmd.run(cmd.Run)
	}
	commands = append(commands, cmds...)
}

func init() {
	AddCmds(
		&Cmd{Name: "ping", Help: "ID", MinArgs: 1, Run: pingCmd},
		&Cmd{Name: "scan", Help: "[FROM TO]", Run: scanCmd},
		&Cmd{Name: "vel", Help: "ID", MinArgs: 1, Run: velCmd},
		&Cmd{Name: "pos", Help: "ID", MinArgs: 1, Run: posCmd},
		&Cmd{Name: "goal.vel", Aliases: []string{"gv"}, Help: "ID RPM", MinArgs: 2, Run: goalVelCmd},
		&Cmd{Name: "goal.pos", Aliases: []string{"gp"}, Help: "ID DEG", MinArgs: 2, Run: goalPosCmd},
		&Cmd{Name: "baud", Help: "ID BPS", MinArgs: 2, Run: baudCmd},
		&Cmd{Name: "margin", Help: "ID N [cw|ccw]", MinArgs: 2, Run: marginCmd},
		&Cmd{Name: "slope", Help: "ID EXP [cw|ccw]", MinArgs: 2, Run: slopeCmd},
		&Cmd{Name: "torque", Help: "ID on|off", MinArgs: 2, Run: torqueCmd},
		&Cmd{Name: "stats", Run: statsCmd},
	)
}

const msgOK = "OK"

func done(err error) (string, error) {
	if err != nil {
		return "", err
	}
	return msgOK, nil
}

func pingCmd(s *Shell, args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	status, err := s.Chain.Ping(id)
	if err != nil {
		return "", err
	}
	if status == nil {
		return msgOK, nil
	}
	return fmt.Sprintf("%d: %s", status.ID, status.Error), nil
}

func scanCmd(s *Shell, args []string) (string, error) {
	from, to := byte(0), byte(dynamixel.BroadcastID-1)
	if len(args) >= 2 {
		var err error
		if from, err = parseID(args[0]); err != nil {
			return "", err
		}
		if to, err = parseID(args[1]); err != nil {
			return "", err
		}
	}
	var w bytes.Buffer
	for id := int(from); id <= int(to) && id < int(dynamixel.BroadcastID); id++ {
		status, err := s.Chain.Ping(byte(id))
		if errors.Is(err, dynamixel.ErrNoResponse) {
			continue
		}
		if err != nil {
			fmt.Fprintf(&w, "%d: %v\n", id, err)
			continue
		}
		fmt.Fprintf(&w, "%d: %s\n", id, status.Error)
	}
	if w.Len() == 0 {
		return "No actuators found", nil
	}
	return string(bytes.TrimSuffix(w.Bytes(), []byte("\n"))), nil
}

func velCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	rpm, err := a.Velocity()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%.1f rpm", rpm), nil
}

func posCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	deg, err := a.Position()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%.1f deg", deg), nil
}

func goalVelCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	rpm, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", err
	}
	return done(a.SetGoalVelocity(rpm))
}

func goalPosCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	deg, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", err
	}
	return done(a.SetGoalPosition(deg))
}

func baudCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	bps, err := strconv.Atoi(args[1])
	if err != nil {
		return "", err
	}
	return done(a.SetBaudRate(bps))
}

func parseUint8(arg string) (uint8, error) {
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", arg)
	}
	return uint8(v), nil
}

func marginCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	v, err := parseUint8(args[1])
	if err != nil {
		return "", err
	}
	side, err := parseSide(args[2:])
	if err != nil {
		return "", err
	}
	switch side {
	case "cw":
		err = a.SetCwComplianceMargin(v)
	case "ccw":
		err = a.SetCcwComplianceMargin(v)
	default:
		err = a.SetComplianceMargin(v)
	}
	return done(err)
}

func slopeCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	v, err := parseUint8(args[1])
	if err != nil {
		return "", err
	}
	side, err := parseSide(args[2:])
	if err != nil {
		return "", err
	}
	switch side {
	case "cw":
		err = a.SetCwComplianceSlope(v)
	case "ccw":
		err = a.SetCcwComplianceSlope(v)
	default:
		err = a.SetComplianceSlope(v)
	}
	return done(err)
}

func torqueCmd(s *Shell, args []string) (string, error) {
	a, err := s.Actuator(args[0])
	if err != nil {
		return "", err
	}
	on, err := parseOnOff(args[1])
	if err != nil {
		return "", err
	}
	return done(a.SetTorqueEnable(on))
}

func statsCmd(s *Shell, args []string) (string, error) {
	st := s.Chain.Stats()
	return fmt.Sprintf("transactions %d, broadcasts %d, no response %d, timeouts %d, checksum %d, malformed %d, transmit %d",
		st.Transactions, st.Broadcasts, st.NoResponse, st.Timeouts,
		st.ChecksumErrors, st.MalformedFrames, st.TransmitErrors), nil
}
