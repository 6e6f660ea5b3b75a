package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/storage"
)

var signaturesRebuildCmd = &cobra.Command{
	Use:   "rebuild [student_id...]",
	Short: "Recompute signatures from the enrollment images kept in MinIO",
	Long: `Re-runs enrollment for the given students (or every enrolled student with
--all) using the source images stored at enrollment time. Use it after
changing the detection or embedding models.`,
	RunE: runSignaturesRebuild,
}

func init() {
	signaturesRebuildCmd.Flags().Bool("all", false, "Rebuild every enrolled student")
	signaturesRebuildCmd.Flags().Bool("publish", true, "Publish enrollment events so running API replicas refresh")
	signaturesCmd.AddCommand(signaturesRebuildCmd)
}

// storedImages is the read side of the enrollment image store.
type storedImages interface {
	ListEnrollmentImages(ctx context.Context, studentCode string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

func runSignaturesRebuild(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	publish, _ := cmd.Flags().GetBool("publish")
	ctx := cmd.Context()

	if len(args) == 0 && !all {
		return errors.New("pass student IDs or --all")
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

	codes := args
	if all {
		sigs, err := db.ListSignatures(ctx, false)
		if err != nil {
			return fmt.Errorf("list signatures: %w", err)
		}
		codes = nil
		for _, s := range sigs {
			codes = append(codes, s.StudentCode)
		}
	}

	blobs, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("connect to minio: %w", err)
	}
	// stored images are read, not re-uploaded
	enroller, cleanup, err := openEnroller(cmd, cfg, db, false, publish)
	if err != nil {
		return err
	}
	defer cleanup()

	bar := newProgressBar(len(codes), "Rebuilding signatures")
	var (
		rebuilt  int
		failures []enrollFailure
	)
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := rebuildOne(ctx, db, blobs, enroller, code)
		if err != nil {
			failures = append(failures, enrollFailure{Student: code, Err: err})
		} else {
			rebuilt++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nRebuilt: %d/%d\n", rebuilt, len(codes))
	if len(failures) > 0 {
		fmt.Printf("Failed: %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  - %s: %v\n", f.Student, f.Err)
		}
	}
	if rebuilt == 0 && len(codes) > 0 {
		return errors.New("no signatures rebuilt")
	}
	return nil
}

func rebuildOne(ctx context.Context, db *storage.PostgresStore, src storedImages, enroller *gallery.Enroller, code string) error {
	st, err := db.GetStudent(ctx, code)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("student not found")
	}
	images, err := fetchStoredImages(ctx, src, code)
	if err != nil {
		return err
	}
	_, err = enroller.Enroll(ctx, gallery.EnrollRequest{
		StudentID: st.Code,
		Name:      st.Name,
		Class:     st.Class,
		Section:   st.Section,
		Images:    images,
	})
	return err
}

func fetchStoredImages(ctx context.Context, src storedImages, code string) ([][]byte, error) {
	keys, err := src.ListEnrollmentImages(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list stored images: %w", err)
	}
	if len(keys) == 0 {
		return nil, errors.New("no stored enrollment images")
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		data, err := src.GetObject(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
