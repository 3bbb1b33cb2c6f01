package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/tui"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	runImportFunc    = tui.RunImport     // mockable

	errHelp = errors.New("help provided")
)

// backend is what commands that touch the database need.
type backend struct {
	svc     *core.Service
	migrate func(ctx context.Context) error
	close   func()
}

type commandLine struct {
	out     io.Writer
	connect func(ctx context.Context) (*backend, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  import-curriculum -cohort ID [-dry-run] [-plain] FILE - import a curriculum CSV into a cohort")
	fmt.Fprintln(cli.out, "  import-students [-cohort ID] [-include-duplicates] [-dry-run] [-plain] FILE - import students")
	fmt.Fprintln(cli.out, "  copy-curriculum -from ID -to ID [-exclude-recordings] [-plain] - copy a curriculum between cohorts")
	fmt.Fprintln(cli.out, "  sample curriculum|students [-o FILE] - write a CSV template")
	fmt.Fprintln(cli.out, "  hash-password - print a bcrypt hash for ADMIN_PASSWORD_HASH")
	fmt.Fprintln(cli.out, "  migrate - apply the database schema")
	fmt.Fprintln(cli.out, "  menu - interactive menu")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx = core.ContextWithActor(ctx, cliActor())

	switch args[1] {
	case "import-curriculum":
		return cli.importCSV(ctx, "curriculum", args[2:])
	case "import-students":
		return cli.importCSV(ctx, "students", args[2:])
	case "copy-curriculum":
		return cli.copyCurriculum(ctx, args[2:])
	case "sample":
		return cli.sample(args[2:])
	case "hash-password":
		return cli.hashPassword()
	case "migrate":
		return cli.withBackend(ctx, func(b *backend) error {
			if err := b.migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, "schema applied")
			return nil
		})
	case "menu":
		return cli.withBackend(ctx, func(b *backend) error {
			_, err := tea.NewProgram(tui.NewMenuModel(buildMenu(ctx, b.svc))).Run()
			return err
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

func cliActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}

func (cli *commandLine) withBackend(ctx context.Context, fn func(b *backend) error) error {
	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}
	defer b.close()
	return fn(b)
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) importCSV(ctx context.Context, kind string, args []string) error {
	fs := cli.flagSet("import-" + kind)
	cohortID := fs.String("cohort", "", "The target cohort id.")
	dryRun := fs.Bool("dry-run", false, "Preview the file without importing.")
	plain := fs.Bool("plain", false, "Print progress lines instead of the interactive view.")
	var includeDuplicates *bool
	if kind == "students" {
		includeDuplicates = fs.Bool("include-duplicates", false, "Import rows whose email already exists.")
	}
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if fs.NArg() != 1 || (kind == "curriculum" && *cohortID == "") {
		fs.Usage()
		return errHelp
	}

	return cli.withBackend(ctx, func(b *backend) error {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		text, err := core.ReadCSVInput(f, b.svc.Config().MaxFileSize)
		if err != nil {
			return err
		}

		req := core.ImportRequest{CohortID: *cohortID, CSV: text}
		if includeDuplicates != nil {
			req.IncludeDuplicates = *includeDuplicates
		}

		preview, err := b.svc.PreviewImport(ctx, kind, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, describePreview(preview))
		if *dryRun {
			return nil
		}

		jobID, err := b.svc.StartImport(ctx, kind, req)
		if err != nil {
			return err
		}
		return cli.follow(ctx, b.svc, "Importing "+fs.Arg(0), jobID, *plain)
	})
}

func (cli *commandLine) copyCurriculum(ctx context.Context, args []string) error {
	fs := cli.flagSet("copy-curriculum")
	from := fs.String("from", "", "The source cohort id.")
	to := fs.String("to", "", "The target cohort id.")
	exclude := fs.Bool("exclude-recordings", false, "Leave out recordings and their lessons.")
	plain := fs.Bool("plain", false, "Print progress lines instead of the interactive view.")
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	if *from == "" || *to == "" {
		fs.Usage()
		return errHelp
	}

	return cli.withBackend(ctx, func(b *backend) error {
		opts := core.CopyOptions{SourceCohortID: *from, TargetCohortID: *to, ExcludeRecordings: *exclude}
		preview, err := b.svc.PreviewCurriculumCopy(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, describePreview(preview))

		jobID, err := b.svc.StartCurriculumCopy(ctx, opts)
		if err != nil {
			return err
		}
		return cli.follow(ctx, b.svc, "Copying curriculum", jobID, *plain)
	})
}

// follow waits for a job, either in the progress view or by printing each
// update, then prints the summary.
func (cli *commandLine) follow(ctx context.Context, svc *core.Service, title, jobID string, plain bool) error {
	var result *core.JobResult
	var err error
	if plain {
		result, err = cli.followPlain(ctx, svc, jobID)
	} else {
		result, err = runImportFunc(ctx, svc, title, jobID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tui.Summary(result))
	if result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}

func (cli *commandLine) followPlain(ctx context.Context, svc *core.Service, jobID string) (*core.JobResult, error) {
	updates, err := svc.SubscribeProgress(jobID)
	if err != nil {
		return nil, err
	}
	for p := range updates {
		if p.Total > 0 {
			fmt.Fprintf(cli.out, "%3d%% %d/%d %s\n", p.Percent(), p.Current, p.Total, p.Label)
		}
	}
	return svc.GetJobResult(ctx, jobID)
}

func describePreview(preview any) string {
	switch p := preview.(type) {
	case core.CurriculumPreview:
		return fmt.Sprintf("%d weeks, %d lessons, %d items (cohort has %d weeks already)", p.Weeks, p.Lessons, p.Items, p.ExistingWeeks)
	case core.StudentImportPreview:
		return fmt.Sprintf("%d rows: %d new, %d duplicates", len(p.Rows), p.New, p.Duplicates)
	case core.CopyPreview:
		return fmt.Sprintf("%d weeks, %d lessons, %d items, %d action items (skipping %d lessons, %d items)",
			p.Weeks, p.Lessons, p.Items, p.ActionItems, p.SkippedLessons, p.SkippedItems)
	}
	return fmt.Sprintf("%v", preview)
}

func (cli *commandLine) sample(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}
	def, ok := core.GetImporter(args[0])
	if !ok {
		return fmt.Errorf("%q: no such importer", args[0])
	}

	fs := cli.flagSet("sample")
	out := fs.String("o", "", "Write to this file instead of stdout.")
	if err := fs.Parse(args[1:]); err != nil {
		return errHelp
	}
	if *out == "" {
		_, err := io.WriteString(cli.out, def.SampleCSV)
		return err
	}
	if err := os.WriteFile(*out, []byte(def.SampleCSV), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "wrote %s\n", *out)
	return nil
}

func (cli *commandLine) hashPassword() error {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		return errors.New("empty password")
	}

	fmt.Fprint(cli.out, "Confirm password:")
	confirm, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if string(confirm) != string(pwd) {
		return errors.New("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword(pwd, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "ADMIN_PASSWORD_HASH='%s'\n", hash)
	return nil
}
