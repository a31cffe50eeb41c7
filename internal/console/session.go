package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/docsheet/docsheet/internal/catalog"
	"github.com/docsheet/docsheet/internal/catalog/objectstore"
	"github.com/docsheet/docsheet/internal/config"
	"github.com/docsheet/docsheet/internal/export"
	"github.com/docsheet/docsheet/internal/literal"
	"github.com/docsheet/docsheet/internal/query"
	"github.com/docsheet/docsheet/internal/sheet"
)

// SourceFactory opens the query source for a container.
type SourceFactory func(ctx context.Context, container catalog.Container) (query.Source, error)

var errQuit = errors.New("quit")

// Session is the state behind one console: the open sheet, the cursor and
// selection within it, the selected container and the last run.
type Session struct {
	Account      string
	Database     string
	Output       string
	MaxItemCount int

	Catalog catalog.Repository
	Sheets  *sheet.Store
	Sources SourceFactory
	Logger  *slog.Logger
	Out     io.Writer

	// RunContext derives the context of a single run. The console binary
	// wires it to SIGINT so Ctrl-C cancels only the run in flight.
	RunContext func(ctx context.Context) (context.Context, context.CancelFunc)

	sheet     *sheet.Sheet
	cursor    int
	selection sheet.Span
	container *catalog.Container
	runner    *sheet.Runner
	lastRun   *sheet.Run
}

func NewSession(out io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		Account:      "local",
		Output:       config.OutputTable,
		MaxItemCount: query.DefaultMaxItemCount,
		Logger:       logger,
		Out:          out,
		RunContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithCancel(ctx)
		},
	}
	s.replaceSheet(sheet.New())
	return s
}

func (s *Session) Sheet() *sheet.Sheet {
	return s.sheet
}

func (s *Session) Cursor() int {
	return s.cursor
}

func (s *Session) Selection() sheet.Span {
	return s.selection
}

func (s *Session) LastRun() *sheet.Run {
	return s.lastRun
}

func (s *Session) Prompt() string {
	where := "(no container)"
	if s.container != nil {
		where = s.container.Path()
	}
	return fmt.Sprintf("%s [%s]> ", where, s.sheet.Title)
}

func (s *Session) replaceSheet(sh *sheet.Sheet) {
	s.sheet = sh
	s.cursor = len([]rune(sh.Text))
	s.selection = sheet.EmptySpan
	s.lastRun = nil
}

// Handle processes one input line. It returns errQuit when the console
// should exit; any other error is reported and the console keeps going.
func (s *Session) Handle(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, `\`) {
		s.cursor = s.sheet.AppendLine(line)
		s.selection = sheet.EmptySpan
		return nil
	}

	command, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch command {
	case `\q`, `\quit`:
		return errQuit
	case `\help`, `\?`:
		writeHelp(s.Out)
		return nil
	case `\run`:
		return s.run(ctx, args)
	case `\resume`:
		return s.resume(ctx)
	case `\select`:
		return s.selectSpan(args)
	case `\cursor`:
		return s.moveCursor(args)
	case `\show`:
		s.show()
		return nil
	case `\clear`:
		s.sheet.SetText("")
		s.cursor = 0
		s.selection = sheet.EmptySpan
		return nil
	case `\pk`:
		return s.partitionKey(rest)
	case `\param`:
		return s.param(rest)
	case `\unparam`:
		return s.unparam(args)
	case `\params`:
		s.listParams()
		return nil
	case `\mru`:
		return s.showMRU(args)
	case `\use`:
		return s.use(ctx, args)
	case `\containers`:
		return s.listContainers(ctx)
	case `\create`:
		return s.createContainer(ctx, args)
	case `\import`:
		return s.importDocuments(ctx, args)
	case `\save`:
		return s.save(ctx, args)
	case `\load`:
		return s.load(ctx, args)
	case `\sheets`:
		return s.listSheets(ctx)
	case `\export`:
		return s.export(args)
	case `\format`:
		return s.format(args)
	default:
		return fmt.Errorf("unknown command %s (try \\help)", command)
	}
}

func (s *Session) run(ctx context.Context, args []string) error {
	cursor := s.cursor
	selection := s.selection
	if len(args) > 0 {
		n, err := parseCursor(args[0])
		if err != nil {
			return err
		}
		cursor = n
		selection = sheet.EmptySpan
	}
	return s.execute(ctx, sheet.RunRequest{Cursor: cursor, Selection: selection})
}

func (s *Session) resume(ctx context.Context) error {
	last := s.lastRun
	if last == nil {
		return fmt.Errorf("nothing to resume")
	}
	if last.Result.Err == nil {
		return fmt.Errorf("last run completed; nothing to resume")
	}
	if last.Result.ContinuationToken == "" {
		return fmt.Errorf("last run has no continuation token; use \\run to start over")
	}
	span, ok := relocate(s.sheet.Text, last.Span, last.Statement)
	if !ok {
		return fmt.Errorf("sheet changed since the last run; use \\run to start over")
	}
	return s.execute(ctx, sheet.RunRequest{Selection: span, Continuation: last.Result.ContinuationToken})
}

// relocate finds statement in text, preferring its previous span. A
// statement that moved is accepted only when it occurs exactly once.
func relocate(text string, span sheet.Span, statement string) (sheet.Span, bool) {
	if statement == "" {
		return sheet.EmptySpan, false
	}
	if span.Slice(text) == statement {
		return span, true
	}
	if strings.Count(text, statement) != 1 {
		return sheet.EmptySpan, false
	}
	start := len([]rune(text[:strings.Index(text, statement)]))
	return sheet.Span{Start: start, End: start + len([]rune(statement)) - 1}, true
}

func (s *Session) execute(ctx context.Context, request sheet.RunRequest) error {
	if s.runner == nil {
		return fmt.Errorf("no container selected; use \\use <database>/<container>")
	}
	runCtx, cancel := s.RunContext(ctx)
	defer cancel()

	run, err := s.runner.Execute(runCtx, s.sheet, request)
	if err != nil {
		return err
	}
	s.lastRun = &run
	s.Logger.Debug("sheet_run_finished",
		"sheet", s.sheet.Title,
		"items", len(run.Result.Items),
		"outcome", string(query.Classify(run.Result.Err)),
	)
	return renderRun(s.Out, s.Output, run)
}

func (s *Session) selectSpan(args []string) error {
	if len(args) == 0 {
		s.selection = sheet.EmptySpan
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf(`usage: \select <start> <end>`)
	}
	start, err := parseCursor(args[0])
	if err != nil {
		return err
	}
	end, err := parseCursor(args[1])
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("selection end %d is before start %d", end, start)
	}
	s.selection = sheet.Span{Start: start, End: end}
	if s.selection.Slice(s.sheet.Text) == "" {
		s.selection = sheet.EmptySpan
		return fmt.Errorf("selection %d..%d is outside the sheet", start, end)
	}
	return nil
}

func (s *Session) moveCursor(args []string) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(s.Out, "cursor %d of %d\n", s.cursor, len([]rune(s.sheet.Text)))
		return nil
	}
	n, err := parseCursor(args[0])
	if err != nil {
		return err
	}
	s.cursor = n
	s.selection = sheet.EmptySpan
	return nil
}

func (s *Session) show() {
	text := s.sheet.Text
	for i, line := range strings.Split(text, "\n") {
		_, _ = fmt.Fprintf(s.Out, "%3d | %s\n", i+1, line)
	}
	span := sheet.Resolve(text, s.cursor, s.selection)
	_, _ = fmt.Fprintf(s.Out, "cursor %d", s.cursor)
	if !s.selection.Empty() {
		_, _ = fmt.Fprintf(s.Out, ", selection %d..%d", s.selection.Start, s.selection.End)
	}
	if span.Empty() {
		_, _ = fmt.Fprintln(s.Out, ", no statement")
	} else {
		_, _ = fmt.Fprintf(s.Out, ", statement %d..%d\n", span.Start, span.End)
	}
	_, _ = fmt.Fprintf(s.Out, "partition key: %s\n", describeRaw(s.sheet.PartitionKey))
}

func (s *Session) partitionKey(raw string) error {
	if raw == "" {
		_, _ = fmt.Fprintf(s.Out, "partition key: %s\n", describeRaw(s.sheet.PartitionKey))
		return nil
	}
	if raw == "-" {
		raw = ""
	}
	s.sheet.PartitionKey = raw
	return fieldWarning(raw)
}

func (s *Session) param(rest string) error {
	name, raw, _ := strings.Cut(rest, " ")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf(`usage: \param <name> [literal]`)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if p, ok := s.sheet.Parameter(name); ok {
			_, _ = fmt.Fprintf(s.Out, "%s = %s\n", p.Name, describeRaw(p.RawValue))
			return nil
		}
	}
	if err := s.sheet.SetParameter(name, raw); err != nil {
		return err
	}
	return fieldWarning(raw)
}

func (s *Session) unparam(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: \unparam <name>`)
	}
	if !s.sheet.RemoveParameter(args[0]) {
		return fmt.Errorf("no parameter %s", sheet.NormalizeParameterName(args[0]))
	}
	return nil
}

func (s *Session) listParams() {
	if len(s.sheet.Parameters) == 0 {
		_, _ = fmt.Fprintln(s.Out, "(no parameters)")
		return
	}
	for _, p := range s.sheet.Parameters {
		_, _ = fmt.Fprintf(s.Out, "%s = %s\n", p.Name, describeRaw(p.RawValue))
	}
}

func (s *Session) showMRU(args []string) error {
	values := s.sheet.PartitionKeyMRU
	label := "partition key"
	if len(args) > 0 {
		p, ok := s.sheet.Parameter(args[0])
		if !ok {
			return fmt.Errorf("no parameter %s", sheet.NormalizeParameterName(args[0]))
		}
		values = p.MRU
		label = p.Name
	}
	if len(values) == 0 {
		_, _ = fmt.Fprintf(s.Out, "no recent values for %s\n", label)
		return nil
	}
	for i, value := range values {
		_, _ = fmt.Fprintf(s.Out, "%2d  %s\n", i+1, value)
	}
	return nil
}

func (s *Session) use(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: \use <database>/<container>`)
	}
	if s.Catalog == nil || s.Sources == nil {
		return fmt.Errorf("no catalog configured")
	}
	ref, err := catalog.ParseRef(s.Account, args[0])
	if err != nil {
		return err
	}
	container, err := s.Catalog.GetContainer(ctx, ref)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("container %s does not exist", ref.Path())
		}
		return err
	}
	source, err := s.Sources(ctx, container)
	if err != nil {
		return fmt.Errorf("open container %s: %w", ref.Path(), err)
	}
	s.container = &container
	s.Database = container.DatabaseID
	s.runner = sheet.NewRunner(query.NewExecutor(source, s.MaxItemCount, s.Logger), s.Logger)
	s.lastRun = nil
	return nil
}

func (s *Session) listContainers(ctx context.Context) error {
	if s.Catalog == nil {
		return fmt.Errorf("no catalog configured")
	}
	containers, err := s.Catalog.ListContainers(ctx, s.Account, "")
	if err != nil {
		return err
	}
	renderContainers(s.Out, containers)
	return nil
}

func (s *Session) createContainer(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf(`usage: \create <database>/<container> [partition-key-path]`)
	}
	if s.Catalog == nil {
		return fmt.Errorf("no catalog configured")
	}
	ref, err := catalog.ParseRef(s.Account, args[0])
	if err != nil {
		return err
	}
	in := catalog.CreateContainerInput{ContainerRef: ref, PartitionKeyPath: "/id"}
	if len(args) == 2 {
		in.PartitionKeyPath = args[1]
	}
	container, err := s.Catalog.CreateContainer(ctx, in)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.Out, "created %s (partition key %s)\n", container.Path(), container.PartitionKeyPath)
	return nil
}

func (s *Session) importDocuments(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: \import <file.jsonl>`)
	}
	if s.container == nil {
		return fmt.Errorf("no container selected; use \\use <database>/<container>")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer func() { _ = file.Close() }()

	docs, err := objectstore.ReadJSONLines(file)
	if err != nil {
		return err
	}
	count, err := s.Catalog.UpsertDocuments(ctx, *s.container, docs)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.Out, "imported %d documents into %s\n", count, s.container.Path())
	return nil
}

func (s *Session) save(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: \save <name>`)
	}
	if s.Sheets == nil {
		return fmt.Errorf("no sheet store configured")
	}
	if err := s.Sheets.Save(ctx, args[0], s.sheet); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.Out, "saved %s\n", s.sheet.Title)
	return nil
}

func (s *Session) load(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: \load <name>`)
	}
	if s.Sheets == nil {
		return fmt.Errorf("no sheet store configured")
	}
	loaded, err := s.Sheets.Load(ctx, args[0])
	if err != nil {
		return err
	}
	s.replaceSheet(loaded)
	return nil
}

func (s *Session) listSheets(ctx context.Context) error {
	if s.Sheets == nil {
		return fmt.Errorf("no sheet store configured")
	}
	names, err := s.Sheets.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, _ = fmt.Fprintln(s.Out, "(no saved sheets)")
		return nil
	}
	for _, name := range names {
		_, _ = fmt.Fprintln(s.Out, name)
	}
	return nil
}

func (s *Session) export(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(`usage: \export <file.parquet|file.json>`)
	}
	if s.lastRun == nil {
		return fmt.Errorf("no result to export; use \\run first")
	}
	summary, err := export.ToFile(args[0], s.lastRun.Result)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.Out, "exported %d items to %s (%s, %d bytes)\n", summary.RecordCount, args[0], summary.Format, summary.Bytes)
	return nil
}

func (s *Session) format(args []string) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(s.Out, "format %s\n", s.Output)
		return nil
	}
	switch args[0] {
	case config.OutputTable, config.OutputJSON:
		s.Output = args[0]
		return nil
	default:
		return fmt.Errorf("unknown format %q: use table or json", args[0])
	}
}

func parseCursor(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid position %q", raw)
	}
	return n, nil
}

func describeRaw(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "(none)"
	}
	if _, err := literal.ParseValue(raw); err != nil {
		return raw + "  (invalid)"
	}
	return raw
}

func fieldWarning(raw string) error {
	if _, err := literal.ParseValue(raw); err != nil {
		return fmt.Errorf("%q is not a valid literal; runs are blocked until it is fixed: %w", raw, err)
	}
	return nil
}

func writeHelp(w io.Writer) {
	lines := []string{
		`Lines that do not start with \ are appended to the sheet. Separate statements with a blank line.`,
		``,
		`  \run [cursor]                 run the selection, or the statement around the cursor`,
		`  \resume                       continue a failed or cancelled run from its continuation token`,
		`  \select [start end]           select a rune range (no arguments clears it)`,
		`  \cursor [n]                   show or move the cursor`,
		`  \show                         print the sheet`,
		`  \clear                        empty the sheet`,
		`  \pk [literal|-]               show or set the partition key (- clears it)`,
		`  \param <name> [literal]       declare or set a parameter`,
		`  \unparam <name>               remove a parameter`,
		`  \params                       list parameters`,
		`  \mru [param]                  recent partition key or parameter values`,
		`  \use <db>/<container>         select the container to query`,
		`  \containers                   list containers in the account`,
		`  \create <db>/<container> [pk] create a container with a partition key path`,
		`  \import <file.jsonl>          upsert documents into the selected container`,
		`  \save <name> | \load <name>   save or open a sheet`,
		`  \sheets                       list saved sheets`,
		`  \export <file>                write the last result as .parquet or .json`,
		`  \format table|json            result output format`,
		`  \quit                         exit`,
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
}
