package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/insights"
	"github.com/example/focusguard/internal/recurrence"
)

// --- schedule ---

func newScheduleCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled locks",
	}
	cmd.AddCommand(
		newScheduleAddCommand(c),
		&cobra.Command{
			Use:   "list",
			Short: "List every schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withServices(cmd.Context(), func(svc *services) error {
					schedules, err := svc.schedules.List(cmd.Context())
					if err != nil {
						return err
					}
					return c.printSchedules(schedules)
				})
			},
		},
		&cobra.Command{
			Use:   "get ID",
			Short: "Show one schedule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withServices(cmd.Context(), func(svc *services) error {
					schedule, err := svc.schedules.Get(cmd.Context(), args[0])
					if err != nil {
						return describeError(err)
					}
					return c.printSchedules([]application.Schedule{schedule})
				})
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a schedule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withServices(cmd.Context(), func(svc *services) error {
					if err := svc.schedules.Delete(cmd.Context(), args[0]); err != nil {
						return describeError(err)
					}
					c.printSuccess("Deleted schedule %s", args[0])
					return nil
				})
			},
		},
		newScheduleToggleCommand(c, "enable", true),
		newScheduleToggleCommand(c, "disable", false),
		&cobra.Command{
			Use:   "import FILE",
			Short: "Import schedules from a stored document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				document, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("reading %s: %w", args[0], err)
				}
				return c.withServices(cmd.Context(), func(svc *services) error {
					imported, err := svc.schedules.Import(cmd.Context(), document)
					if err != nil {
						return describeError(err)
					}
					c.printSuccess("Imported %d schedules", imported)
					return nil
				})
			},
		},
	)
	return cmd
}

func newScheduleAddCommand(c *cli) *cobra.Command {
	var (
		apps      []string
		days      []string
		startTime string
		endTime   string
		startDate string
		endDate   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring or one-time schedule",
		Long: `Add a recurring or one-time schedule.

Examples:
  focusguard schedule add --apps com.example.video --start 09:00 --end 17:00 --days mon,tue,wed,thu,fri
  focusguard schedule add --apps com.example.game --start 22:00 --end 06:00 --days all
  focusguard schedule add --apps com.example.chat --start 13:00 --end 14:00 --date 2024-03-04`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := parseDays(days)
			if err != nil {
				return err
			}
			input := application.ScheduleInput{
				AppPackageNames: apps,
				ScheduleConfig: recurrence.Config{
					StartDate:    startDate,
					EndDate:      endDate,
					StartTime:    startTime,
					EndTime:      endTime,
					SelectedDays: selected,
				},
			}
			return c.withServices(cmd.Context(), func(svc *services) error {
				schedule, err := svc.schedules.Add(cmd.Context(), input)
				if err != nil {
					return describeError(err)
				}
				if c.jsonOut {
					return c.printJSON(schedule)
				}
				c.printSuccess("Added schedule %s", schedule.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&apps, "apps", nil, "comma-separated package names")
	cmd.Flags().StringSliceVar(&days, "days", nil, "weekdays (mon..sun or all); omit for a one-time schedule")
	cmd.Flags().StringVar(&startTime, "start", "", "start time HH:MM")
	cmd.Flags().StringVar(&endTime, "end", "", "end time HH:MM")
	cmd.Flags().StringVar(&startDate, "date", "", "start date YYYY-MM-DD for one-time schedules (default today)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date YYYY-MM-DD for one-time schedules")
	return cmd
}

func newScheduleToggleCommand(c *cli, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(svc *services) error {
				if _, err := svc.schedules.SetEnabled(cmd.Context(), args[0], enabled); err != nil {
					return describeError(err)
				}
				c.printSuccess("Schedule %s %sd", args[0], verb)
				return nil
			})
		},
	}
}

var weekdayIndex = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

// parseDays maps weekday names onto the Monday-first selection.
func parseDays(names []string) ([7]bool, error) {
	var selected [7]bool
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "all" {
			for i := range selected {
				selected[i] = true
			}
			continue
		}
		if len(key) > 3 {
			key = key[:3]
		}
		idx, ok := weekdayIndex[key]
		if !ok {
			return selected, fmt.Errorf("unknown weekday %q", name)
		}
		selected[idx] = true
	}
	return selected, nil
}

// --- locks ---

func newLockCommand(c *cli) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "lock PACKAGE",
		Short: "Lock an app now, for a number of minutes or indefinitely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration := application.Indefinitely()
			if cmd.Flags().Changed("minutes") {
				duration = application.Minutes(minutes)
			}
			return c.withServices(cmd.Context(), func(svc *services) error {
				entry, err := svc.locks.LockNow(cmd.Context(), args[0], duration)
				if err != nil {
					return describeError(err)
				}
				if c.jsonOut {
					return c.printJSON(entry)
				}
				c.printSuccess("Locked %s (%s)", entry.PackageName, duration)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "lock duration in minutes; omit to lock until unlocked")
	return cmd
}

func newUnlockCommand(c *cli) *cobra.Command {
	var emergency bool
	cmd := &cobra.Command{
		Use:   "unlock PACKAGE",
		Short: "Remove a manual lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(svc *services) error {
				release := svc.locks.Unlock
				if emergency {
					release = svc.locks.EmergencyUnlock
				}
				if err := release(cmd.Context(), args[0]); err != nil {
					return describeError(err)
				}
				c.printSuccess("Unlocked %s", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&emergency, "emergency", false, "record the unlock as a bypass")
	return cmd
}

func newLockedCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "locked",
		Short: "Show the currently locked apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(svc *services) error {
				now := time.Now()
				entries, err := svc.locks.Locked(cmd.Context(), now)
				if err != nil {
					return err
				}
				return c.printLocks(entries, now)
			})
		},
	}
}

func newBlockedCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "Show app launches the agent blocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(svc *services) error {
				events, err := svc.locks.BlockedEvents(cmd.Context())
				if err != nil {
					return err
				}
				return c.printBlocked(events)
			})
		},
	}
}

// --- quotes ---

func newQuoteCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Manage the quotes shown when an app is blocked",
	}

	var listCategory string
	list := &cobra.Command{
		Use:   "list",
		Short: "List custom quotes, or every quote of one category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(svc *services) error {
				quotes, err := svc.quotes.CustomQuotes(cmd.Context())
				if err != nil {
					return err
				}
				if listCategory != "" {
					all := application.DefaultQuotes(listCategory)
					if len(all) == 0 {
						return fmt.Errorf("unknown category %q", listCategory)
					}
					for _, quote := range quotes {
						if quote.Category == listCategory {
							all = append(all, quote)
						}
					}
					quotes = all
				}
				return c.printQuotes(quotes)
			})
		},
	}
	list.Flags().StringVar(&listCategory, "category", "", "include the built-in quotes of this category")

	var input application.QuoteInput
	add := &cobra.Command{
		Use:   "add TEXT",
		Short: "Add a custom quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Text = args[0]
			return c.withServices(cmd.Context(), func(svc *services) error {
				quote, err := svc.quotes.AddCustomQuote(cmd.Context(), input)
				if err != nil {
					return describeError(err)
				}
				if c.jsonOut {
					return c.printJSON(quote)
				}
				c.printSuccess("Added quote %s", quote.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&input.Category, "category", application.DefaultQuoteCategory, strings.Join(application.QuoteCategories(), ", "))
	add.Flags().StringVar(&input.Author, "author", "", "who said it")

	cmd.AddCommand(
		list,
		add,
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a custom quote",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withServices(cmd.Context(), func(svc *services) error {
					if err := svc.quotes.DeleteCustomQuote(cmd.Context(), args[0]); err != nil {
						return describeError(err)
					}
					c.printSuccess("Deleted quote %s", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "random",
			Short: "Show a quote as the block screen would",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withServices(cmd.Context(), func(svc *services) error {
					quote, err := svc.quotes.RandomQuote(cmd.Context())
					if err != nil {
						return err
					}
					return c.printQuotes([]application.Quote{quote})
				})
			},
		},
		newQuoteSettingsCommand(c),
	)
	return cmd
}

func newQuoteSettingsCommand(c *cli) *cobra.Command {
	var (
		category string
		source   string
		stats    bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the quote category and source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch application.QuoteSettingsPatch
			if cmd.Flags().Changed("category") {
				patch.Category = &category
			}
			if cmd.Flags().Changed("source") {
				s := application.QuoteSource(source)
				patch.Source = &s
			}
			if cmd.Flags().Changed("stats") {
				patch.ShowProductivityStats = &stats
			}
			return c.withServices(cmd.Context(), func(svc *services) error {
				settings, err := svc.quotes.Settings(cmd.Context())
				if patch != (application.QuoteSettingsPatch{}) {
					settings, err = svc.quotes.UpdateSettings(cmd.Context(), patch)
				}
				if err != nil {
					return describeError(err)
				}
				if c.jsonOut {
					return c.printJSON(settings)
				}
				fmt.Fprintf(c.out, "category %s, source %s, productivity stats %t\n",
					settings.Category, settings.Source, settings.ShowProductivityStats)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", strings.Join(application.QuoteCategories(), ", "))
	cmd.Flags().StringVar(&source, "source", "", "default, custom or both")
	cmd.Flags().BoolVar(&stats, "stats", true, "show productivity stats on the block screen")
	return cmd
}

// --- insights ---

func newInsightsCommand(c *cli) *cobra.Command {
	var (
		period string
		reset  bool
	)
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show usage and lock insight cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := insights.ParsePeriod(period)
			if err != nil {
				return err
			}
			return c.withServices(cmd.Context(), func(svc *services) error {
				if reset {
					if err := svc.insights.Reset(cmd.Context()); err != nil {
						return err
					}
					c.printSuccess("Insights data cleared")
					return nil
				}
				cards, err := svc.insights.GetInsightCards(cmd.Context(), p)
				if err != nil {
					return err
				}
				return c.printCards(p, cards)
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", string(insights.Weekly), "daily, weekly, monthly or yearly")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear usage and lock history")
	return cmd
}

func newUsageCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show per-app and per-day usage totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(svc *services) error {
				apps, err := svc.insights.AppUsage(cmd.Context())
				if err != nil {
					return err
				}
				daily, err := svc.insights.DailyUsage(cmd.Context())
				if err != nil {
					return err
				}
				return c.printUsage(apps, daily)
			})
		},
	}
}

// --- migrate ---

func newMigrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and report the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.DatabasePath == memoryDatabase {
				return fmt.Errorf("migrate needs a database file, not %s", memoryDatabase)
			}
			repos, err := openRepositories(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer repos.close()

			status, err := repos.sqlite.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			return c.printMigrations(status)
		},
	}
}
