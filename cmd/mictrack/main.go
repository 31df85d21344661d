package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mictrack",
		Short: "Track NYC open mics, sets and plans",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(scrapeCmd())
	root.AddCommand(micsCmd())
	root.AddCommand(rateCmd())
	root.AddCommand(removeCmd())
	root.AddCommand(setsCmd())
	root.AddCommand(planCmd())
	root.AddCommand(geocodeCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())

	return root
}

func scrapeCmd() *cobra.Command {
	var (
		sources []string
		apply   bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run site scrapers and compare results against the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(sources, apply)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to scrape (e.g., badslava,firemics)")
	cmd.Flags().BoolVar(&apply, "apply", false, "insert newly found mics into the store")
	return cmd
}

func micsCmd() *cobra.Command {
	var (
		day        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "mics",
		Short: "List active mics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMics(day, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "filter to one weekday (e.g., Monday)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func rateCmd() *cobra.Command {
	var (
		micID  int64
		rating float64
	)

	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Rate a mic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRate(micID, rating)
		},
	}

	cmd.Flags().Int64Var(&micID, "mic-id", 0, "mic id (required)")
	cmd.Flags().Float64Var(&rating, "rating", 0, "rating 0-10 (required)")
	cmd.MarkFlagRequired("mic-id")
	cmd.MarkFlagRequired("rating")
	return cmd
}

func removeCmd() *cobra.Command {
	var micID int64

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Deactivate a mic (set history is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(micID)
		},
	}

	cmd.Flags().Int64Var(&micID, "mic-id", 0, "mic id (required)")
	cmd.MarkFlagRequired("mic-id")
	return cmd
}

func setsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Log and list performances",
	}

	var (
		micID       int64
		date        string
		setRating   int
		crowdRating int
		notes       string
		setList     string
		newMaterial bool
	)
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Log a set at a mic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetsLog(micID, date, setRating, crowdRating, notes, setList, newMaterial)
		},
	}
	logCmd.Flags().Int64Var(&micID, "mic-id", 0, "mic id (required)")
	logCmd.Flags().StringVar(&date, "date", "", "date performed YYYY-MM-DD (default: today)")
	logCmd.Flags().IntVar(&setRating, "rating", 0, "self rating 1-10")
	logCmd.Flags().IntVar(&crowdRating, "crowd", 0, "crowd rating 1-10")
	logCmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	logCmd.Flags().StringVar(&setList, "set-list", "", "material performed")
	logCmd.Flags().BoolVar(&newMaterial, "new-material", false, "tried new material")
	logCmd.MarkFlagRequired("mic-id")

	var jsonOutput bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List logged sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetsList(jsonOutput)
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	cmd.AddCommand(logCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Mark mics going or cancelled on specific dates",
	}

	var (
		micID  int64
		date   string
		status string
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set the plan for a mic on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanSet(micID, date, status)
		},
	}
	setCmd.Flags().Int64Var(&micID, "mic-id", 0, "mic id (required)")
	setCmd.Flags().StringVar(&date, "date", "", "plan date YYYY-MM-DD (required)")
	setCmd.Flags().StringVar(&status, "status", "going", "going or cancelled")
	setCmd.MarkFlagRequired("mic-id")
	setCmd.MarkFlagRequired("date")

	var (
		clearMicID int64
		clearDate  string
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the plan for a mic on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanClear(clearMicID, clearDate)
		},
	}
	clearCmd.Flags().Int64Var(&clearMicID, "mic-id", 0, "mic id (required)")
	clearCmd.Flags().StringVar(&clearDate, "date", "", "plan date YYYY-MM-DD (required)")
	clearCmd.MarkFlagRequired("mic-id")
	clearCmd.MarkFlagRequired("date")

	var weekOf string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plans for a week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanList(weekOf)
		},
	}
	listCmd.Flags().StringVar(&weekOf, "week-of", "", "any date in the week YYYY-MM-DD (default: today)")

	cmd.AddCommand(setCmd)
	cmd.AddCommand(clearCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Fill in coordinates for mics missing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeocode()
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the scrape audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory()
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "server port")
	return cmd
}
