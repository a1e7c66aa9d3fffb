package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-event-approvals/internal/client"
	"github.com/pesio-ai/be-event-approvals/internal/config"
	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
	"github.com/pesio-ai/be-event-approvals/internal/service"
)

// env is what the commands need from the outside world.
type env struct {
	openDB    func(ctx context.Context) (*database.DB, error)
	openStore func(ctx context.Context) (repository.Store, error)
	dial      func(addr string) (*client.EventsClient, error)
	log       *logger.Logger
}

func defaultEnv() *env {
	e := &env{
		dial: func(addr string) (*client.EventsClient, error) { return client.NewEventsClient(addr) },
		log:  logger.Nop(),
	}
	e.openDB = func(ctx context.Context) (*database.DB, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		e.log = logger.New(logger.Config{
			Level:       cfg.LogLevel,
			Environment: cfg.Service.Environment,
			ServiceName: "eventsctl",
			Version:     cfg.Service.Version,
		})
		return database.New(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			Database:    cfg.Database.Database,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnTime: cfg.Database.MaxConnTime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
			HealthCheck: cfg.Database.HealthCheck,
		})
	}
	e.openStore = func(ctx context.Context) (repository.Store, error) {
		db, err := e.openDB(ctx)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(db), nil
	}
	return e
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:          "eventsctl",
		Short:        "Administer the event approvals service",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("addr", "localhost:9086", "gRPC address of the service")

	root.AddCommand(
		migrateCmd(e),
		seedCmd(e),
		venuesCmd(e),
		resourcesCmd(e),
		eventCmd(e),
		pendingCmd(e),
		statsCmd(e),
		advanceCmd(e),
		rejectCmd(e),
		completeCmd(e),
	)
	return root
}

// ── Database commands ────────────────────────────────────────────────────────

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
			return nil
		},
	}
}

// withStore opens the store for one command run.
func withStore(e *env, fn func(cmd *cobra.Command, args []string, store repository.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := e.openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
		return fn(cmd, args, store)
	}
}

func seedCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default venues and resources",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			created, err := service.NewCatalogService(store, e.log).SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d catalog entries\n", created)
			return nil
		}),
	}
}

func venuesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "List venues",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			venues, err := service.NewCatalogService(store, e.log).ListVenues(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout(), "ID", "NAME", "CAPACITY", "LOCATION")
			for _, v := range venues {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", v.ID, v.Name, v.Capacity, v.Location)
			}
			return w.Flush()
		}),
	}

	var name, location string
	var capacity int
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a venue",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			v, err := service.NewCatalogService(store, e.log).CreateVenue(cmd.Context(), name, capacity, location)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created venue %s (%s)\n", v.Name, v.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&name, "name", "", "venue name")
	add.Flags().IntVar(&capacity, "capacity", 0, "maximum attendees")
	add.Flags().StringVar(&location, "location", "", "where the venue is")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("capacity")
	cmd.AddCommand(add)
	return cmd
}

func resourcesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List resources and their availability",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			resources, err := service.NewCatalogService(store, e.log).ListResources(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout(), "ID", "NAME", "AVAILABLE", "TOTAL")
			for _, r := range resources {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.ID, r.Name, r.Available, r.Total)
			}
			return w.Flush()
		}),
	}

	var name string
	var total int
	add := &cobra.Command{
		Use:   "add",
		Short: "Register countable equipment",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			r, err := service.NewCatalogService(store, e.log).CreateResource(cmd.Context(), name, total)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created resource %s (%s)\n", r.Name, r.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&name, "name", "", "resource name")
	add.Flags().IntVar(&total, "total", 0, "units owned")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("total")
	cmd.AddCommand(add)
	return cmd
}

func eventCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "event <id>",
		Short: "Show an event with its approval trail",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			coord := service.NewEventCoordinator(store, nil, nil, e.log)
			snap, err := coord.GetEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func pendingCmd(e *env) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List events waiting on an approver role",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			coord := service.NewEventCoordinator(store, nil, nil, e.log)
			events, err := coord.PendingFor(cmd.Context(), repository.Role(role))
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout(), "ID", "TITLE", "ORGANIZER", "START", "END")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ev.ID, ev.Title, ev.OrganizerID,
					ev.Interval.Start.Format(time.RFC3339), ev.Interval.End.Format(time.RFC3339))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&role, "role", "", "approver role (hod, dean, head)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func statsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count events per stage",
		Args:  cobra.NoArgs,
		RunE: withStore(e, func(cmd *cobra.Command, args []string, store repository.Store) error {
			coord := service.NewEventCoordinator(store, nil, nil, e.log)
			counts, err := coord.Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout(), "STAGE", "EVENTS")
			for _, s := range repository.AllStages {
				fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
			}
			return w.Flush()
		}),
	}
}

// ── gRPC commands ────────────────────────────────────────────────────────────

// withClient dials the service named by --addr for one command run.
func withClient(e *env, fn func(cmd *cobra.Command, args []string, c *client.EventsClient) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		c, err := e.dial(addr)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd, args, c)
	}
}

func advanceCmd(e *env) *cobra.Command {
	var role, comment string
	cmd := &cobra.Command{
		Use:   "advance <id>",
		Short: "Approve an event's current stage",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(e, func(cmd *cobra.Command, args []string, c *client.EventsClient) error {
			if err := c.Advance(cmd.Context(), repository.Role(role), args[0], comment); err != nil {
				return err
			}
			return printStage(cmd, c, args[0])
		}),
	}
	cmd.Flags().StringVar(&role, "role", "", "approver role (hod, dean, head)")
	cmd.Flags().StringVar(&comment, "comment", "", "note kept in the approval trail")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func rejectCmd(e *env) *cobra.Command {
	var role, reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an event at its current stage",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(e, func(cmd *cobra.Command, args []string, c *client.EventsClient) error {
			if err := c.Reject(cmd.Context(), repository.Role(role), args[0], reason); err != nil {
				return err
			}
			return printStage(cmd, c, args[0])
		}),
	}
	cmd.Flags().StringVar(&role, "role", "", "approver role (hod, dean, head)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the event was rejected")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func completeCmd(e *env) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Close an approved event and return its resources",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(e, func(cmd *cobra.Command, args []string, c *client.EventsClient) error {
			if err := c.Complete(cmd.Context(), actor, args[0]); err != nil {
				return err
			}
			return printStage(cmd, c, args[0])
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "organizer id of the event (required)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

// ── Output ───────────────────────────────────────────────────────────────────

func printStage(cmd *cobra.Command, c *client.EventsClient, id string) error {
	snap, err := c.GetEvent(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Event %s is now %s\n", id, snap.Event.Stage)
	return nil
}

func table(out io.Writer, headers ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, h)
	}
	fmt.Fprintln(w)
	return w
}

func printSnapshot(out io.Writer, snap *repository.EventSnapshot) {
	ev := snap.Event
	fmt.Fprintf(out, "%s  %s\n", ev.ID, ev.Title)
	fmt.Fprintf(out, "Stage:     %s\n", ev.Stage)
	fmt.Fprintf(out, "Organizer: %s\n", ev.OrganizerID)
	fmt.Fprintf(out, "Venue:     %s (%d attendees)\n", ev.VenueID, ev.AttendeeCount)
	fmt.Fprintf(out, "When:      %s - %s\n", ev.Interval.Start.Format(time.RFC3339), ev.Interval.End.Format(time.RFC3339))
	if ev.RejectionReason != "" {
		fmt.Fprintf(out, "Rejected:  %s\n", ev.RejectionReason)
	}
	for _, rq := range snap.Reserved {
		fmt.Fprintf(out, "Holds:     %d x %s\n", rq.Quantity, rq.ResourceID)
	}

	fmt.Fprintln(out, "\nTrail:")
	w := table(out, "WHEN", "FROM", "TO", "ROLE", "NOTE")
	for _, rec := range snap.Trail {
		from := string(rec.FromStage)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.RecordedAt.Format(time.RFC3339), from, rec.ToStage, rec.ActorRole.Label(), rec.Comment)
	}
	_ = w.Flush()
}
