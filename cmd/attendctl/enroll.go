package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/vision"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <dir>",
	Short: "Enroll every student folder under a directory",
	Long: `Each subdirectory named {student_id}_{name} is enrolled from the images
it contains (jpg, jpeg, png). Underscores in the name become spaces, so
106_Meera_Nair enrolls student 106 as "Meera Nair". Existing signatures are
replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	enrollDirCmd.Flags().String("class", "", "Class assigned to every enrolled student")
	enrollDirCmd.Flags().String("section", "", "Section assigned to every enrolled student")
	enrollDirCmd.Flags().Bool("upload", true, "Store the usable source images in MinIO")
	enrollDirCmd.Flags().Bool("publish", true, "Publish enrollment events so running API replicas refresh")
	rootCmd.AddCommand(enrollDirCmd)
}

// studentDir is one {student_id}_{name} folder and its images.
type studentDir struct {
	ID     string
	Name   string
	Images []string
}

type enrollFailure struct {
	Student string
	Err     error
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	class, _ := cmd.Flags().GetString("class")
	section, _ := cmd.Flags().GetString("section")
	upload, _ := cmd.Flags().GetBool("upload")
	publish, _ := cmd.Flags().GetBool("publish")
	ctx := cmd.Context()

	students, err := scanStudentDirs(args[0])
	if err != nil {
		return err
	}
	if len(students) == 0 {
		return fmt.Errorf("no {student_id}_{name} folders found in %s", args[0])
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

	enroller, cleanup, err := openEnroller(cmd, cfg, db, upload, publish)
	if err != nil {
		return err
	}
	defer cleanup()

	bar := newProgressBar(len(students), "Enrolling students")

	var (
		enrolled int
		failures []enrollFailure
	)
	for _, st := range students {
		if err := ctx.Err(); err != nil {
			return err
		}
		images, err := readImages(st.Images)
		if err != nil {
			failures = append(failures, enrollFailure{Student: st.ID, Err: err})
			_ = bar.Add(1)
			continue
		}
		_, err = enroller.Enroll(ctx, gallery.EnrollRequest{
			StudentID: st.ID,
			Name:      st.Name,
			Class:     class,
			Section:   section,
			Images:    images,
		})
		if err != nil {
			failures = append(failures, enrollFailure{Student: st.ID, Err: err})
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nEnrolled: %d/%d\n", enrolled, len(students))
	if len(failures) > 0 {
		fmt.Printf("Failed: %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  - %s: %v\n", f.Student, f.Err)
		}
	}
	if enrolled == 0 {
		return errors.New("no students enrolled")
	}
	return nil
}

// scanStudentDirs lists the enrollable folders under root, sorted by student ID.
// Folders that do not follow the naming scheme are skipped.
func scanStudentDirs(root string) ([]studentDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var out []studentDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, name, ok := parseStudentDir(e.Name())
		if !ok {
			continue
		}
		imgs, err := listImages(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, studentDir{ID: id, Name: name, Images: imgs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func parseStudentDir(dir string) (id, name string, ok bool) {
	id, rest, found := strings.Cut(dir, "_")
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(strings.ReplaceAll(rest, "_", " "))
	if !found || id == "" || name == "" {
		return "", "", false
	}
	return id, name, true
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func readImages(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// openEnroller loads the face models and connects the optional blob store and
// event publisher. cleanup releases everything openEnroller acquired.
func openEnroller(cmd *cobra.Command, cfg *config.Config, db *storage.PostgresStore, upload, publish bool) (enroller *gallery.Enroller, cleanup func(), err error) {
	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, nil, fmt.Errorf("init onnx runtime: %w", err)
	}
	closers = append(closers, func() { _ = ort.DestroyEnvironment() })

	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		return nil, nil, fmt.Errorf("load face models: %w", err)
	}
	closers = append(closers, extractor.Close)

	enroller = gallery.NewEnroller(extractor, db, nil, cfg.Enrollment.MinImages, cfg.Vision.MaxImageDim)
	if upload {
		blobs, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to minio: %w", err)
		}
		if err := blobs.EnsureBucket(cmd.Context()); err != nil {
			return nil, nil, fmt.Errorf("ensure bucket: %w", err)
		}
		enroller.WithBlobs(blobs)
	}
	if publish {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		closers = append(closers, producer.Close)
		enroller.WithPublisher(producer)
	}
	return enroller, release, nil
}

func newProgressBar(count int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func onnxLibPath() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
