package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/starwatch/internal/adapters/driven/github"
	"github.com/custodia-labs/starwatch/internal/core/domain"
)

type reconcileOptions struct {
	all      bool
	notify   bool
	parallel int
	jsonOut  bool
}

func newReconcileCmd() *cobra.Command {
	opts := reconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile [repo-id...]",
		Short: "Reconcile repositories now and print the diff",
		Long: `Runs one synchronous reconciliation per repository, bypassing the task
queue. The minimum interval still applies: a repository reconciled too
recently is reported as skipped.

With --all every tracked repository is reconciled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.all == (len(args) > 0) {
				return errors.New("pass repository IDs or --all, not both")
			}
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ids := args
			if opts.all {
				repos, err := a.registry.ListTrackedRepos(ctx)
				if err != nil {
					return fmt.Errorf("list tracked repos: %w", err)
				}
				for _, repo := range repos {
					ids = append(ids, repo.ID)
				}
			}

			return runReconcile(ctx, cmd, a, ids, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "reconcile every tracked repository")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "deliver the diff to subscribers")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 4, "repositories reconciled at once")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON lines")
	return cmd
}

func runReconcile(ctx context.Context, cmd *cobra.Command, a *app, ids []string, opts reconcileOptions) error {
	if len(ids) == 0 {
		cmd.Println("No repositories to reconcile.")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	for _, id := range ids {
		g.Go(func() error {
			result, notified, err := reconcileOne(ctx, a, id, opts.notify)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, id)
				cmd.PrintErrf("%s: %v\n", id, err)
				return nil
			}
			printResult(cmd, result, notified, opts.jsonOut)
			return nil
		})
	}
	_ = g.Wait()

	if !opts.jsonOut && a.source != nil {
		printQuota(cmd, a.source.RateLimiter())
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d repositories failed: %s", len(failed), len(ids), strings.Join(failed, ", "))
	}
	return nil
}

func reconcileOne(ctx context.Context, a *app, id string, notify bool) (*domain.ReconcileResult, int, error) {
	if !notify {
		result, err := a.reconciler.Reconcile(ctx, id)
		return result, 0, err
	}
	result, err := a.notifications.HandleRepo(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return result.ReconcileResult, result.Notified, nil
}

func printResult(cmd *cobra.Command, result *domain.ReconcileResult, notified int, jsonOut bool) {
	if jsonOut {
		data, err := json.Marshal(result)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", result.Repo.ID, err)
			return
		}
		cmd.Println(string(data))
		return
	}

	if result.Skipped {
		cmd.Printf("%s: skipped, reconciled less than the minimum interval ago\n", result.Repo.URL)
		return
	}

	cmd.Printf("%s: %d stargazers, %d pages fetched in %s\n",
		result.Repo.URL, result.Stargazers, result.PagesFetched, result.Duration.Round(time.Millisecond))
	if result.IsFirstSync {
		cmd.Println("  first sync, baseline recorded")
		return
	}
	if len(result.Added) > 0 {
		cmd.Printf("  + %s\n", strings.Join(result.Added, ", "))
	}
	if len(result.Removed) > 0 {
		cmd.Printf("  - %s\n", strings.Join(result.Removed, ", "))
	}
	if notified > 0 {
		cmd.Printf("  notified %d subscribers\n", notified)
	}
}

// printQuota reports the GitHub quota left after the batch.
func printQuota(cmd *cobra.Command, rl *github.RateLimiter) {
	if rl.ResetTime().IsZero() {
		return
	}
	cmd.Printf("GitHub quota: %d of %d requests left, resets at %s\n",
		rl.Remaining(), rl.Limit(), rl.ResetTime().Local().Format(time.Kitchen))
}
