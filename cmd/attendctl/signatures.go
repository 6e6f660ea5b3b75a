package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "Inspect enrolled signatures",
}

var signaturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students and their image counts",
	Args:  cobra.NoArgs,
	RunE:  runSignaturesList,
}

func init() {
	signaturesListCmd.Flags().Bool("json", false, "Output as JSON")
	signaturesCmd.AddCommand(signaturesListCmd)
	rootCmd.AddCommand(signaturesCmd)
}

func runSignaturesList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sigs, err := db.ListSignatures(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("list signatures: %w", err)
	}
	if jsonOutput {
		return outputJSON(sigs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIMAGES\tUPDATED")
	for _, s := range sigs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.StudentCode, s.Name, s.NumImages, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d enrolled\n", len(sigs))
	return nil
}
