package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/attend/internal/models"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect recorded attendance",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance marks for a day",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceList,
}

func init() {
	attendanceListCmd.Flags().String("date", "", "Day to list (YYYY-MM-DD, default today)")
	attendanceListCmd.Flags().String("period", "", "Only show this period")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")

	attendanceCmd.AddCommand(attendanceListCmd)
	rootCmd.AddCommand(attendanceCmd)
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	period, _ := cmd.Flags().GetString("period")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	date, err := resolveDate(date)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListAttendance(cmd.Context(), date, period)
	if err != nil {
		return fmt.Errorf("list attendance: %w", err)
	}
	if jsonOutput {
		return outputJSON(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPERIOD\tID\tNAME\tEMOTION\tSTATUS\tCONFIDENCE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.1f\n",
			r.Time, r.Period, r.StudentCode, r.Name, r.Emotion, r.SpoofStatus, r.RecognitionConfidence)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d marks on %s\n", len(records), date)
	return nil
}

// resolveDate validates a YYYY-MM-DD flag value; empty means today.
func resolveDate(date string) (string, error) {
	if date == "" {
		return time.Now().Format(models.DateLayout), nil
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
	}
	return t.Format(models.DateLayout), nil
}
