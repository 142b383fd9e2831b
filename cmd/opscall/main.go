package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/opscall/opscall/pkg/archive"
	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/registry"
	"github.com/opscall/opscall/pkg/session"
	"github.com/opscall/opscall/pkg/tree"
	"github.com/opscall/opscall/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "opscall",
	Short: "Generic service caller",
	Long:  "opscall — compose service requests from expressions, invoke any registered service, and inspect the response, without service-specific code.",
}

// --- shared flags ---

var (
	flagRegistry string
	flagTimeout  string
	flagArchive  string
)

// openRegistry builds the registry selected by --registry.  The returned
// closer shuts down any spawned backend process.
func openRegistry(ctx context.Context) (registry.Registry, func(), error) {
	sel := flagRegistry
	if sel == "" || sel == "demo" {
		return registry.Demo(), func() {}, nil
	}
	if rest, ok := strings.CutPrefix(sel, "mcp:"); ok {
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			return nil, nil, fmt.Errorf("--registry mcp: needs a server binary, e.g. mcp:./my-server")
		}
		m, err := registry.SpawnMCP(ctx, parts[0], parts[1:]...)
		if err != nil {
			return nil, nil, fmt.Errorf("spawn MCP registry: %w", err)
		}
		return m, func() { m.Shutdown(2 * time.Second) }, nil
	}
	return nil, nil, fmt.Errorf("unknown registry %q: use 'demo' or 'mcp:<binary> [args]'", sel)
}

func callTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(flagTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid --timeout %q: %w", flagTimeout, err)
	}
	return d, nil
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List callable services from the registry",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	timeout, err := callTimeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	names, err := session.ListAvailable(ctx, reg)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// --- describe ---

var describePlain bool

var describeCmd = &cobra.Command{
	Use:   "describe [service]",
	Short: "Show a service's request and response fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	timeout, err := callTimeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svc, err := reg.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", svc.Name)
	if svc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", svc.Description)
	}
	writeFieldTable(&b, "Request", tree.ProjectRoot(svc.Name, message.New(svc.Request), true))
	writeFieldTable(&b, "Response", tree.ProjectRoot(svc.Name, message.New(svc.Response), false))

	if describePlain {
		fmt.Print(b.String())
		return nil
	}
	fmt.Println(renderMarkdown(b.String()))
	return nil
}

// writeFieldTable appends a markdown table with one row per projected node.
func writeFieldTable(b *strings.Builder, title string, root *tree.Node) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| path | type |\n|------|------|\n")
	root.Walk(func(n *tree.Node) {
		if n == root {
			return
		}
		fmt.Fprintf(b, "| `%s` | %s |\n", n.Path, n.TypeName)
	})
	fmt.Fprintln(b)
}

// renderMarkdown converts markdown to styled terminal output, falling back
// to the raw input if glamour is unavailable or rendering fails.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// --- call ---

var (
	callExprs   []string
	callCounter int
	callLoad    string
	callSave    string
	callJSON    bool
)

var callCmd = &cobra.Command{
	Use:   "call [service]",
	Short: "Invoke a service with expression-valued fields",
	Long: `Invoke a service.  Request fields are set from expressions:

  opscall call /add_two_ints -e /add_two_ints/a=2 -e '/add_two_ints/b=i*2' --counter 21

Fields without an expression keep their type defaults.  Array elements are
grown on demand: referencing /svc/items[2]/x creates elements 0 through 2.`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	timeout, err := callTimeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	sess, err := session.New(ctx, reg, args[0])
	if err != nil {
		return err
	}
	if err := sess.SetCounter(callCounter); err != nil {
		return err
	}
	if callLoad != "" {
		if err := sess.LoadRequest(flagArchive, callLoad); err != nil {
			return fmt.Errorf("load request: %w", err)
		}
	}
	if err := applyExprFlags(sess, callExprs); err != nil {
		return err
	}
	if callSave != "" {
		if err := sess.SaveRequest(flagArchive, callSave); err != nil {
			return fmt.Errorf("save request: %w", err)
		}
		fmt.Fprintf(os.Stderr, "saved request %q to %s\n", callSave, flagArchive)
	}

	resp, diags, callErr := sess.Call(ctx)
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "  ⚠ %s\n", d)
	}

	if callJSON {
		req, _ := sess.BuildRequest()
		out := map[string]any{
			"service": sess.Service().Name,
			"request": req.ToMap(),
		}
		if callErr != nil {
			out["error"] = callErr.Error()
		} else {
			out["response"] = sess.Response().ToMap()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
	} else {
		printTree(resp, 0)
	}

	if callErr != nil {
		os.Exit(1)
	}
	return nil
}

// applyExprFlags parses repeated -e path=expression flags into the session.
// Paths for grown array elements may not exist in the tree yet; those are
// created by adding elements up to the referenced index first.
func applyExprFlags(sess *session.Session, flags []string) error {
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid -e %q: expected path=expression", f)
		}
		path, expr := parts[0], parts[1]
		if err := sess.SetExpression(path, expr); err != nil {
			if growErr := growArrayFor(sess, path); growErr != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
			if err := sess.SetExpression(path, expr); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// growArrayFor adds array elements so that the bracketed index in path
// exists, e.g. /svc/items[2]/x forces elements 0..2.
func growArrayFor(sess *session.Session, path string) error {
	open := strings.Index(path, "[")
	end := strings.Index(path, "]")
	if open < 0 || end < open {
		return fmt.Errorf("no array index in path")
	}
	idx, err := strconv.Atoi(path[open+1 : end])
	if err != nil {
		return fmt.Errorf("bad array index in %q", path)
	}
	arrayPath := path[:open]
	for {
		child, err := sess.AddArrayElement(arrayPath)
		if err != nil {
			return err
		}
		if strings.HasSuffix(child.Path, fmt.Sprintf("[%d]", idx)) {
			return nil
		}
	}
}

// printTree renders a projected tree as indented name/type/value lines.
func printTree(n *tree.Node, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	line := indent + n.Name
	if n.TypeName != "" {
		line += " (" + n.TypeName + ")"
	}
	if n.Expression != "" && len(n.Children) == 0 {
		line += " = " + n.Expression
	}
	fmt.Println(line)
	for _, c := range n.Children {
		printTree(c, depth+1)
	}
}

// --- save ---

var (
	saveExprs   []string
	saveCounter int
)

var saveCmd = &cobra.Command{
	Use:   "save [service] [label]",
	Short: "Compose a request from expressions and archive it without calling",
	Args:  cobra.ExactArgs(2),
	RunE:  runSave,
}

func runSave(cmd *cobra.Command, args []string) error {
	timeout, err := callTimeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	sess, err := session.New(ctx, reg, args[0])
	if err != nil {
		return err
	}
	if err := sess.SetCounter(saveCounter); err != nil {
		return err
	}
	if err := applyExprFlags(sess, saveExprs); err != nil {
		return err
	}
	if err := sess.SaveRequest(flagArchive, args[1]); err != nil {
		return err
	}
	fmt.Printf("✓ saved request %q to %s\n", args[1], flagArchive)
	return nil
}

// --- archive ---

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archived request operations",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived requests",
	RunE:  runArchiveList,
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	entries, err := archive.Read(flagArchive)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("no entries in %s\n", flagArchive)
		return nil
	}
	for _, e := range entries {
		fmt.Printf("  %-24s  %-28s  %s\n", e.Label, e.Type, e.SavedAt.Format(time.RFC3339))
	}
	return nil
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the archive entry JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := describe.SchemaJSON(&archive.Entry{},
		"https://github.com/opscall/opscall/archive-entry.schema.json",
		"Archived request entry")
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// --- tui ---

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal interface",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	timeout, err := callTimeout()
	if err != nil {
		return err
	}
	ctx := context.Background()
	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return tui.Run(tui.Config{
		Registry: reg,
		Archive:  flagArchive,
		Timeout:  timeout,
		Version:  version,
	})
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("opscall %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "demo", "Service registry: 'demo' or 'mcp:<binary> [args]'")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "5s", "Per-call timeout (e.g. 5s, 1m)")
	rootCmd.PersistentFlags().StringVar(&flagArchive, "archive", "requests.yaml", "Path of the request archive file")

	describeCmd.Flags().BoolVar(&describePlain, "plain", false, "Print raw markdown without terminal styling")

	callCmd.Flags().StringArrayVarP(&callExprs, "expr", "e", nil, "Set a field expression (path=expression), repeatable")
	callCmd.Flags().IntVar(&callCounter, "counter", 0, "Value expressions see as the variable i")
	callCmd.Flags().StringVar(&callLoad, "load", "", "Load the archived request with this label before applying -e flags")
	callCmd.Flags().StringVar(&callSave, "save", "", "Archive the composed request under this label before calling")
	callCmd.Flags().BoolVar(&callJSON, "json", false, "Output request and response as JSON")

	saveCmd.Flags().StringArrayVarP(&saveExprs, "expr", "e", nil, "Set a field expression (path=expression), repeatable")
	saveCmd.Flags().IntVar(&saveCounter, "counter", 0, "Value expressions see as the variable i")

	archiveCmd.AddCommand(archiveListCmd)
	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(versionCmd)
}
