package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/briangreenhill/moto/internal/navigation"
	"github.com/briangreenhill/moto/internal/ride"
	"github.com/briangreenhill/moto/internal/units"
	"github.com/google/uuid"
)

type CLI struct {
	writer   io.Writer
	services *Services
	logger   *slog.Logger
}

func NewCLI(w io.Writer, services *Services, logger *slog.Logger) *CLI {
	return &CLI{
		writer:   w,
		services: services,
		logger:   logger,
	}
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.Usage()
		return nil
	}

	commands := map[string]func(context.Context, []string) error{
		"list":   c.List,
		"show":   c.Show,
		"import": c.Import,
		"export": c.Export,
		"rename": c.Rename,
		"delete": c.Delete,
		"replay": c.Replay,
		"signup": c.SignUp,
		"reset":  c.ResetPassword,
		"sync":   c.Sync,
		"api":    c.RunAPI,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		c.Usage()
		return nil
	}
	return cmd(ctx, args[1:])
}

func (c *CLI) Usage() {
	fmt.Fprint(c.writer, `Usage: moto [command] [flags]
--help show this message

	list
	show --id
	import --gpx
	export --id [--out]
	rename --id --name
	delete --id
	replay --gpx [--routes --to]
	signup --email --password [--username]
	reset --email
	sync --email --password | --token
	api
`)
}

func (c *CLI) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.writer)
	fs.Usage = c.Usage
	return fs
}

func (c *CLI) List(_ context.Context, args []string) error {
	fs := c.flags("list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u := c.services.Units
	rides := c.services.Library.Recent()
	if len(rides) == 0 {
		fmt.Fprintln(c.writer, "No rides yet")
		return nil
	}
	for _, r := range rides {
		stats := r.Stats(time.Now())
		fmt.Fprintf(c.writer, "%s  %-20s  %s  %10s  %s\n",
			r.ID, r.Name, r.StartTime.Format("2006-01-02 15:04"),
			u.Distance(stats.Distance), units.Duration(r.Duration(time.Now())))
	}
	return nil
}

func (c *CLI) Show(_ context.Context, args []string) error {
	fs := c.flags("show")
	var id string
	fs.StringVar(&id, "id", "", "ride id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := c.ride(id)
	if err != nil {
		return err
	}
	c.printRide(r)
	return nil
}

func (c *CLI) printRide(r ride.Ride) {
	u := c.services.Units
	now := time.Now()
	stats := r.Stats(now)

	if r.Finished() {
		fmt.Fprintf(c.writer, "%s\n", r.Name)
	} else {
		fmt.Fprintf(c.writer, "%s (in progress)\n", r.Name)
	}
	fmt.Fprintf(c.writer, "  started    %s\n", r.StartTime.Format(time.RFC1123))
	fmt.Fprintf(c.writer, "  duration   %s\n", units.Duration(r.Duration(now)))
	fmt.Fprintf(c.writer, "  distance   %s\n", u.Distance(stats.Distance))
	fmt.Fprintf(c.writer, "  avg speed  %s\n", u.Speed(stats.AverageSpeed))
	fmt.Fprintf(c.writer, "  max speed  %s\n", u.Speed(stats.MaxSpeed))
	fmt.Fprintf(c.writer, "  altitude   %s - %s\n", u.Altitude(stats.MinAltitude), u.Altitude(stats.MaxAltitude))
	fmt.Fprintf(c.writer, "  climb      +%s / -%s\n", u.Altitude(stats.TotalAscent), u.Altitude(stats.TotalDescent))

	for i, split := range ride.Splits(r.Trace) {
		fmt.Fprintf(c.writer, "  split %-3d  %s in %s\n", i+1, u.Distance(split.Distance),
			units.Duration(time.Duration(split.SplitTime*float64(time.Second))))
	}
}

func (c *CLI) Import(ctx context.Context, args []string) error {
	fs := c.flags("import")
	var gpxFile string
	fs.StringVar(&gpxFile, "gpx", "", "path to gpx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if gpxFile == "" {
		fs.Usage()
		return nil
	}

	c.logger.Info("Importing ride", slog.String("gpx_file", gpxFile))

	gpxBytes, err := readGPXFile(gpxFile)
	if err != nil {
		return err
	}
	r, err := ride.ImportGPX(gpxBytes)
	if err != nil {
		return err
	}
	if err := c.services.Library.Add(ctx, r); err != nil {
		return err
	}

	fmt.Fprintf(c.writer, "Ride %s added successfully\n", r.ID)
	return nil
}

func (c *CLI) Export(_ context.Context, args []string) error {
	fs := c.flags("export")
	var id, out string
	fs.StringVar(&id, "id", "", "ride id")
	fs.StringVar(&out, "out", "", "output file, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := c.ride(id)
	if err != nil {
		return err
	}
	data, err := ride.ExportGPX(r)
	if err != nil {
		return err
	}

	if out == "" {
		_, err := c.writer.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(c.writer, "Ride exported to %s\n", out)
	return nil
}

func (c *CLI) Rename(ctx context.Context, args []string) error {
	fs := c.flags("rename")
	var id, name string
	fs.StringVar(&id, "id", "", "ride id")
	fs.StringVar(&name, "name", "", "new name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rideID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid ride id %q: %w", id, err)
	}
	r, err := c.services.Library.Rename(ctx, rideID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.writer, "Ride renamed to %s\n", r.Name)
	return nil
}

func (c *CLI) Delete(ctx context.Context, args []string) error {
	fs := c.flags("delete")
	var id string
	fs.StringVar(&id, "id", "", "ride id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rideID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid ride id %q: %w", id, err)
	}
	if err := c.services.Library.Delete(ctx, rideID); err != nil {
		return err
	}
	fmt.Fprintln(c.writer, "Ride deleted")
	return nil
}

// Replay feeds the fixes of a GPX track through the session as if they
// came from the location provider, recording a new ride and optionally
// navigating to a place while doing so.
func (c *CLI) Replay(ctx context.Context, args []string) error {
	fs := c.flags("replay")
	var gpxFile, routesFile, to string
	fs.StringVar(&gpxFile, "gpx", "", "path to gpx track to replay")
	fs.StringVar(&routesFile, "routes", "", "gpx file with routes and waypoints")
	fs.StringVar(&to, "to", "", "place to navigate to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if gpxFile == "" {
		fs.Usage()
		return nil
	}

	data, err := readGPXFile(gpxFile)
	if err != nil {
		return err
	}
	track, err := ride.ImportGPX(data)
	if err != nil {
		return err
	}

	provider := c.services.Routes
	if routesFile != "" {
		if provider, err = LoadRoutes(routesFile, c.services.Config.CruiseSpeedKmh); err != nil {
			return err
		}
	}

	// the replay runs on the clock of the track, not the wall clock
	clock := track.Trace[0].Timestamp
	recorder := ride.NewRecorder(c.logger,
		ride.WithClock(func() time.Time { return clock }),
		ride.WithMaxHorizontalAccuracy(c.services.Config.MaxAccuracy))
	session := NewSession(c.logger, c.services.Library, recorder, navigation.NewTracker(c.logger),
		provider, navigation.RouteOptions{}, c.services.Hub)

	if _, err := session.StartRecording(track.Name); err != nil {
		return err
	}

	// routing needs an origin, so the first fix locates the session before
	// any fix is handled
	navigating := to != ""
	if navigating {
		session.Locate(track.Trace[0])
		if err := c.startNavigation(ctx, session, to); err != nil {
			session.DiscardRecording()
			return err
		}
	}

	u := c.services.Units
	for _, fix := range track.Trace {
		clock = fix.Timestamp
		_, events := session.HandleFix(fix)

		for _, e := range events {
			switch e.Type {
			case navigation.EventStepAdvanced:
				fmt.Fprintf(c.writer, "[%s] %s\n", fix.Timestamp.Format("15:04:05"), e.Instruction)
			case navigation.EventArrived:
				fmt.Fprintf(c.writer, "[%s] Arrived\n", fix.Timestamp.Format("15:04:05"))
			}
		}
	}

	if navigating {
		if state := session.Navigation(); state.Active {
			fmt.Fprintf(c.writer, "Stopped %s short of the destination\n", u.Distance(state.RemainingDistance))
			session.StopNavigation()
		}
	}

	r, err := session.StopRecording(ctx)
	if err != nil {
		return err
	}
	c.printRide(r)
	return nil
}

func (c *CLI) startNavigation(ctx context.Context, session *Session, to string) error {
	places, err := session.Search(ctx, to)
	if err != nil {
		return err
	}
	routes, err := session.RouteToResult(ctx, 0)
	if err != nil {
		return err
	}
	if err := session.StartNavigation(); err != nil {
		return err
	}

	state := session.Navigation()
	fmt.Fprintf(c.writer, "Navigating to %s via %s (%d routes), %s\n",
		places[0].Name, state.Route.Name, len(routes), c.services.Units.Distance(state.RemainingDistance))
	if state.CurrentStep != nil {
		fmt.Fprintln(c.writer, state.CurrentStep.Instruction)
	}
	return nil
}

func (c *CLI) SignUp(ctx context.Context, args []string) error {
	fs := c.flags("signup")
	var email, password, username string
	fs.StringVar(&email, "email", "", "email")
	fs.StringVar(&password, "password", "", "password")
	fs.StringVar(&username, "username", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.services.RequireBackend()
	if err != nil {
		return err
	}
	user, err := client.SignUp(ctx, email, password, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.writer, "Signed up as %s\n", user.Email)
	fmt.Fprintf(c.writer, "Token: %s\n", client.Token())
	return nil
}

func (c *CLI) ResetPassword(ctx context.Context, args []string) error {
	fs := c.flags("reset")
	var email string
	fs.StringVar(&email, "email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.services.RequireBackend()
	if err != nil {
		return err
	}
	if err := client.ResetPassword(ctx, email); err != nil {
		return err
	}
	fmt.Fprintf(c.writer, "Password reset requested for %s\n", email)
	return nil
}

// Sync uploads every local ride and adds remote rides missing locally. A
// session opened with email and password is signed out afterwards; one
// resumed from a token stays valid.
func (c *CLI) Sync(ctx context.Context, args []string) error {
	fs := c.flags("sync")
	var email, password, token string
	fs.StringVar(&email, "email", "", "email")
	fs.StringVar(&password, "password", "", "password")
	fs.StringVar(&token, "token", "", "token printed by signup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.services.RequireBackend()
	if err != nil {
		return err
	}
	if token != "" {
		if _, err := client.Resume(ctx, token); err != nil {
			return err
		}
	} else {
		if _, err := client.SignIn(ctx, email, password); err != nil {
			return err
		}
		defer func() {
			if err := client.SignOut(ctx); err != nil {
				c.logger.Error("Error signing out", slog.Any("error", err))
			}
		}()
	}

	library := c.services.Library
	uploaded := 0
	for _, r := range library.List() {
		if _, err := client.SaveRide(ctx, r); err != nil {
			return err
		}
		uploaded++
	}

	remote, err := client.FetchRides(ctx)
	if err != nil {
		return err
	}
	downloaded := 0
	for _, r := range remote {
		if _, err := library.Get(r.ID); err == nil {
			continue
		} else if !errors.Is(err, ride.ErrRideNotFound) {
			return err
		}
		if err := library.Add(ctx, r); err != nil {
			return err
		}
		downloaded++
	}

	fmt.Fprintf(c.writer, "Uploaded %d rides, downloaded %d rides\n", uploaded, downloaded)
	return nil
}

func (c *CLI) RunAPI(ctx context.Context, args []string) error {
	fs := c.flags("api")
	addr := fs.String("addr", c.services.Config.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	server := &http.Server{
		Addr:    *addr,
		Handler: NewAPI(c.logger, c.services),
	}

	go func() {
		<-ctx.Done()
		c.logger.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Error("Error shutting down server", slog.Any("error", err))
		}
	}()

	c.logger.Info("Starting server", slog.String("addr", *addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		c.logger.Error("Error starting server", slog.Any("error", err))
		cancel()
		return err
	}

	return nil
}

func (c *CLI) ride(id string) (ride.Ride, error) {
	rideID, err := uuid.Parse(id)
	if err != nil {
		return ride.Ride{}, fmt.Errorf("invalid ride id %q: %w", id, err)
	}
	return c.services.Library.Get(rideID)
}
