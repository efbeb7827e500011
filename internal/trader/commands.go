package trader

import (
	"strings"

	"RSITrader/internal/flagfile"
)

// HandleCommand processes a remote command and returns a reply.
func (t *Trader) HandleCommand(command string) string {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) == 0 {
		return usage
	}
	switch fields[0] {
	case "/status":
		return t.LastStatus()
	case "/stop":
		if err := flagfile.Create(t.opts.StopFile); err != nil {
			t.log.WithError(err).Error("create stop file")
			return "could not create stop file: " + err.Error()
		}
		return "stop requested, the loop ends after the current cycle"
	case "/buy":
		if len(fields) < 2 {
			if flagfile.Exists(t.opts.BuyGateFile) {
				return "buying is on"
			}
			return "buying is off"
		}
		switch fields[1] {
		case "on":
			if err := flagfile.Create(t.opts.BuyGateFile); err != nil {
				return "could not enable buying: " + err.Error()
			}
			return "buying enabled"
		case "off":
			if err := flagfile.Remove(t.opts.BuyGateFile); err != nil {
				return "could not disable buying: " + err.Error()
			}
			return "buying disabled"
		}
	}
	return usage
}

const usage = "commands:\n• /status\n• /stop\n• /buy [on|off]"
