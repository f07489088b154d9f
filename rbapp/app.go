package rbapp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/benz9527/rbkv/lib/tree"
	"github.com/benz9527/rbkv/observability"
	"github.com/benz9527/rbkv/xlog"
)

var ErrEmptyKey = errors.New("[rbapp] empty key")

// LineNoContextKey carries the 1-based input line number of the command.
const LineNoContextKey = xlog.ContextKey("line")

const maxLineSize = 1 << 20

type commandHandler func(app *App, ctx context.Context, args string) error

var commandTable = map[Command]commandHandler{
	CmdInsert: (*App).insert,
	CmdFind:   (*App).find,
	CmdDelete: (*App).delete,
	CmdPrint: func(app *App, ctx context.Context, _ string) error {
		return app.print(ctx)
	},
}

// App is the line oriented command layer over one string multimap.
// It is not safe for concurrent use, the multimap may be.
type App struct {
	tree   tree.RBMultiMap[string, string]
	out    *bufio.Writer
	logger xlog.XLogger
	stats  *observability.TreeStats
}

type AppOption func(app *App)

func WithAppTree(t tree.RBMultiMap[string, string]) AppOption {
	return func(app *App) {
		app.tree = t
	}
}

func WithAppOutput(w io.Writer) AppOption {
	return func(app *App) {
		app.out = bufio.NewWriter(w)
	}
}

func WithAppLogger(logger xlog.XLogger) AppOption {
	return func(app *App) {
		app.logger = logger
	}
}

func WithAppStats(stats *observability.TreeStats) AppOption {
	return func(app *App) {
		app.stats = stats
	}
}

func NewApp(opts ...AppOption) *App {
	app := &App{}
	for _, o := range opts {
		if o != nil {
			o(app)
		}
	}
	if app.tree == nil {
		app.tree = tree.NewRBMultiMap[string, string]()
	}
	if app.out == nil {
		app.out = bufio.NewWriter(os.Stdout)
	}
	if app.logger == nil {
		app.logger = xlog.NewNopXLogger()
	}
	return app
}

func (app *App) Tree() tree.RBMultiMap[string, string] {
	return app.tree
}

// ProcessCommand runs one input line. It returns false after quit.
// Unknown commands are ignored.
func (app *App) ProcessCommand(ctx context.Context, line string) (bool, error) {
	cmd, args := ParseCommand(line)
	app.stats.RecordCommand(ctx, string(cmd))
	app.logger.DebugContext(ctx, "command", zap.String("command", string(cmd)))

	if cmd == CmdQuit {
		return false, nil
	}
	handler, ok := commandTable[cmd]
	if !ok {
		return true, nil
	}
	if err := handler(app, ctx, args); err != nil {
		return true, err
	}
	return true, app.out.Flush()
}

// Run reads the commands line by line until quit, EOF or the context
// is done. The rejected inserts are logged and skipped.
func (app *App) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmdCtx := context.WithValue(ctx, LineNoContextKey, lineNo)
		cont, err := app.ProcessCommand(cmdCtx, scanner.Text())
		if errors.Is(err, ErrEmptyKey) || errors.Is(err, tree.ErrRBTreeIsFull) {
			app.logger.WarnContext(cmdCtx, "insert rejected", zap.Error(err))
		} else if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return scanner.Err()
}

func (app *App) insert(ctx context.Context, args string) error {
	key, val := ParseKeyValue(args)
	if key == "" {
		return ErrEmptyKey
	}
	err := app.tree.Insert(key, val)
	app.stats.RecordInsert(ctx, err)
	if err != nil {
		return fmt.Errorf("insert %q: %w", key, err)
	}
	return nil
}

// find looks up the whole argument as the key.
func (app *App) find(ctx context.Context, key string) error {
	vals := app.tree.FindAll(key)
	app.stats.RecordFind(ctx, len(vals))
	for _, val := range vals {
		if _, err := fmt.Fprintf(app.out, "%s %s\n", key, val); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) delete(ctx context.Context, args string) error {
	key, val := ParseKeyValue(args)
	removed := app.tree.DeleteAll(key, val)
	app.stats.RecordDelete(ctx, removed)
	if removed == 0 {
		app.logger.DebugContext(ctx, "delete matched nothing", zap.String("key", key))
	}
	return nil
}

// print writes the tree sideways, the right subtree first. The color
// letter is right aligned to depth*4+4 columns.
func (app *App) print(_ context.Context) error {
	for item := range app.tree.Traverse() {
		color := lo.Ternary(item.Color == tree.Red, 'R', 'B')
		if _, err := fmt.Fprintf(app.out, "%*c %s %s\n", item.Depth*4+4, color, item.Key, item.Val); err != nil {
			return err
		}
	}
	return nil
}
