package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim"
	"github.com/combat-sim/combat-sim/sim/engine"
	"github.com/combat-sim/combat-sim/sim/remote"
)

// buildChannels opens n compute channels. An empty engineURL selects the
// in-process engine; ws:// and wss:// URLs dial the engine's websocket and
// http:// and https:// URLs post each trial. The returned func closes every
// connection that was opened.
func buildChannels(ctx context.Context, reg sim.Registry, engineURL string, n int) ([]sim.ComputeChannel, func(), error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("channels must be >= 1, got %d", n)
	}
	var (
		channels []sim.ComputeChannel
		closers  []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logrus.Debugf("closing channel: %v", err)
			}
		}
	}

	for i := 0; i < n; i++ {
		switch {
		case engineURL == "":
			channels = append(channels, engine.New(reg))
		case strings.HasPrefix(engineURL, "ws://"), strings.HasPrefix(engineURL, "wss://"):
			ws, err := remote.DialWS(ctx, engineURL)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			channels = append(channels, ws)
			closers = append(closers, ws.Close)
		case strings.HasPrefix(engineURL, "http://"), strings.HasPrefix(engineURL, "https://"):
			channels = append(channels, remote.NewHTTPChannel(engineURL))
		default:
			return nil, nil, fmt.Errorf("unsupported engine URL %q (want ws://, wss://, http:// or https://)", engineURL)
		}
	}
	logrus.Infof("opened %d compute channel(s)", len(channels))
	return channels, closeAll, nil
}
