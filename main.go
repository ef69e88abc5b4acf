package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fzft/hevent/echo"
	"github.com/fzft/hevent/log"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"go.uber.org/zap"
)

const usage = `usage: hevent [-v] [-i] [-6] [-reuseport] [-addr ADDR] [-port PORT]
              [-interval MS] [-setsize N] tcp|udp server|client
       hevent -version`

var errUsage = errors.New(usage)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flag, args := flags.New(args, "-v", "-i", "-6", "-reuseport", "-version")
	parm, args := parms.New(args, "-addr", "-port", "-interval", "-setsize")

	if flag.ByName["-version"] {
		fmt.Println(Version())
		return nil
	}
	if len(args) != 2 {
		return errUsage
	}

	cfg := echo.DefaultConfig()
	cfg.Proto, cfg.Role = args[0], args[1]
	cfg.Addr = parm.ByName["-addr"]
	cfg.IPv6 = flag.ByName["-6"]
	cfg.ReusePort = flag.ByName["-reuseport"]
	if err := intParm(parm.ByName["-port"], &cfg.Port); err != nil {
		return fmt.Errorf("-port: %w", err)
	}
	if err := intParm(parm.ByName["-setsize"], &cfg.SetSize); err != nil {
		return fmt.Errorf("-setsize: %w", err)
	}
	if s := parm.ByName["-interval"]; len(s) > 0 {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("-interval: %w", err)
		}
		cfg.CronMs = ms
	}
	cfg.Interactive = cfg.Role == echo.RoleClient &&
		(flag.ByName["-i"] || isatty.IsTerminal(os.Stdin.Fd()))
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := log.InitLogger(flag.ByName["-v"]); err != nil {
		return err
	}
	defer log.Logger.Sync()
	log.Logger.Info("starting", zap.String("version", Version()),
		zap.String("proto", cfg.Proto), zap.String("role", cfg.Role))

	if cfg.Role == echo.RoleServer {
		return serve(cfg)
	}
	return dial(cfg)
}

func intParm(s string, v *int) error {
	if len(s) == 0 {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = n
	return nil
}

func serve(cfg echo.Config) error {
	s, err := echo.NewServer(cfg)
	if err != nil {
		return err
	}
	s.Run()
	log.Logger.Info("stopped", zap.Any("stats", s.Stats()))
	return s.Close()
}

func dial(cfg echo.Config) error {
	c, err := echo.NewClient(cfg)
	if err != nil {
		return err
	}
	if cfg.Interactive {
		if err := c.Interact(nil); err != nil {
			c.Close()
			return err
		}
	}
	c.Run()
	log.Logger.Info("stopped", zap.Any("stats", c.Stats()))
	return c.Close()
}
