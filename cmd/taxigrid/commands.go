package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taxigrid/internal/geom"
)

var (
	dropoffFlag []int
	eventsLimit int
	eventsSkip  int
)

var routeCmd = &cobra.Command{
	Use:   "route X Y",
	Short: "Rank the nearest taxis for a pickup point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pickup, dropoff, err := routeArgs(args, dropoffFlag)
		if err != nil {
			return err
		}

		store, closeFn, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := store.Route(cmd.Context(), pickup, dropoff)
		if err != nil {
			return err
		}
		printJSON(res)
		return nil
	},
}

// routeArgs parses the pickup and the optional --dropoff X,Y pair. A dropoff
// on the pickup itself is rejected.
func routeArgs(args []string, dropoffXY []int) (geom.Point, *geom.Point, error) {
	pts, err := parsePoints(args)
	if err != nil {
		return geom.Point{}, nil, err
	}
	pickup := pts[0]
	switch len(dropoffXY) {
	case 0:
		return pickup, nil, nil
	case 2:
	default:
		return geom.Point{}, nil, fmt.Errorf("--dropoff wants X,Y, got %d values", len(dropoffXY))
	}
	d := geom.Pt(dropoffXY[0], dropoffXY[1])
	if d == pickup {
		return geom.Point{}, nil, errors.New("pickup and dropoff locations cannot be the same")
	}
	return pickup, &d, nil
}

var bookCmd = &cobra.Command{
	Use:   "book PX PY TX TY",
	Short: "Move the taxi at (TX,TY) to the pickup (PX,PY)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		pts, err := parsePoints(args)
		if err != nil {
			return err
		}
		store, closeFn, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		b, err := store.Book(cmd.Context(), pts[0], pts[1], "")
		if err != nil {
			return err
		}
		printJSON(b)
		return nil
	},
}

var rideCmd = &cobra.Command{
	Use:   "ride DX DY TX TY",
	Short: "Move the taxi at (TX,TY) to the dropoff (DX,DY)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		pts, err := parsePoints(args)
		if err != nil {
			return err
		}
		store, closeFn, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		b, err := store.StartRide(cmd.Context(), pts[0], pts[1])
		if err != nil {
			return err
		}
		printJSON(b)
		return nil
	},
}

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Print every taxi position",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		printJSON(store.Fleet())
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Page through the fleet event log (sqlite and postgres backends)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		evts, total, err := store.Events(cmd.Context(), eventsLimit, eventsSkip)
		if err != nil {
			return err
		}
		printJSON(map[string]any{"events": evts, "total": total})
		return nil
	},
}

func init() {
	routeCmd.Flags().IntSliceVar(&dropoffFlag, "dropoff", nil, "dropoff point echoed in the result, as X,Y")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "number of events")
	eventsCmd.Flags().IntVar(&eventsSkip, "offset", 0, "skip the newest N events")

	rootCmd.AddCommand(routeCmd, bookCmd, rideCmd, fleetCmd, eventsCmd)
}
