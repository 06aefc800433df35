// Command redline inspects DOCX packages and applies operation plans to
// them: list parts, show relationships, diff two packages, and execute a
// plan file against a baseline.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/benjaminschreck/go-redline/pkg/redline"
	"github.com/benjaminschreck/go-redline/pkg/redline/opc"
	"github.com/benjaminschreck/go-redline/pkg/redline/oxml"
)

const version = "0.1.0"

// CLI defines the command-line interface for redline.
var CLI struct {
	Config string `help:"Path to a redline.toml config file" type:"path"`

	Inspect InspectCmd `cmd:"" help:"List package parts with kind, size and fingerprint"`
	Rels    RelsCmd    `cmd:"" help:"Show the relationships of a part"`
	Diff    DiffCmd    `cmd:"" help:"Compare two packages part by part"`
	Apply   ApplyCmd   `cmd:"" help:"Apply an operation plan to a package"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("redline"),
		kong.Description("Minimal-diff OOXML patch compiler and transactional package mutator."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	if CLI.Config != "" {
		config, err := redline.LoadConfigFile(CLI.Config)
		ctx.FatalIfErrorf(err)
		redline.SetGlobalConfig(config)
	}

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func openPackageFile(path string) (*opc.Package, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	pkg, err := opc.OpenPackage(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return pkg, data, nil
}

// InspectCmd lists every part of a package.
type InspectCmd struct {
	Path string `arg:"" help:"Package file (.docx)" type:"existingfile"`
}

func (c *InspectCmd) Run() error {
	pkg, _, err := openPackageFile(c.Path)
	if err != nil {
		return err
	}

	rows := make([][]string, 0)
	for _, path := range pkg.Paths() {
		content, err := pkg.Read(path)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			path,
			string(opc.KindOf(path)),
			strconv.Itoa(len(content)),
			opc.Fingerprint(content)[:12],
		})
	}

	fmt.Println(renderTable(
		[]string{"Part", "Kind", "Bytes", "Fingerprint"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

// RelsCmd shows the relationship entries owned by a part.
type RelsCmd struct {
	Path string `arg:"" help:"Package file (.docx)" type:"existingfile"`
	Part string `arg:"" optional:"" help:"Owning part (default word/document.xml)"`
}

func (c *RelsCmd) Run() error {
	pkg, _, err := openPackageFile(c.Path)
	if err != nil {
		return err
	}

	owner := c.Part
	if owner == "" {
		owner = "word/document.xml"
	}
	relsPath := opc.RelsPathFor(owner)
	data, err := pkg.Read(relsPath)
	if err != nil {
		return fmt.Errorf("no relationships part at %s", relsPath)
	}

	nodes, err := oxml.Query(data, "//*[local-name()='Relationship']")
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(nodes))
	for _, node := range nodes {
		rows = append(rows, []string{
			node.SelectAttr("Id"),
			node.SelectAttr("Type"),
			node.SelectAttr("Target"),
			node.SelectAttr("TargetMode"),
		})
	}

	fmt.Println(renderTable(
		[]string{"Id", "Type", "Target", "Mode"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

// DiffCmd compares two packages by part fingerprint, or one part's text.
type DiffCmd struct {
	Old  string `arg:"" help:"Baseline package" type:"existingfile"`
	New  string `arg:"" help:"Edited package" type:"existingfile"`
	Part string `help:"Show a colored text diff of one XML part"`
}

func (c *DiffCmd) Run() error {
	oldPkg, _, err := openPackageFile(c.Old)
	if err != nil {
		return err
	}
	newPkg, _, err := openPackageFile(c.New)
	if err != nil {
		return err
	}

	if c.Part != "" {
		return diffPart(oldPkg, newPkg, c.Part)
	}

	added := color.New(color.FgGreen).SprintFunc()
	removed := color.New(color.FgRed).SprintFunc()
	changed := color.New(color.FgYellow).SprintFunc()

	oldPaths := make(map[string]bool)
	for _, path := range oldPkg.Paths() {
		oldPaths[path] = true
	}

	rows := make([][]string, 0)
	for _, path := range newPkg.Paths() {
		if !oldPaths[path] {
			rows = append(rows, []string{added("added"), path})
			continue
		}
		oldContent, _ := oldPkg.Read(path)
		newContent, _ := newPkg.Read(path)
		if opc.Fingerprint(oldContent) != opc.Fingerprint(newContent) {
			rows = append(rows, []string{changed("changed"), path})
		}
	}
	for _, path := range oldPkg.Paths() {
		if !newPkg.Has(path) {
			rows = append(rows, []string{removed("removed"), path})
		}
	}

	if len(rows) == 0 {
		fmt.Println("packages are identical")
		return nil
	}
	fmt.Println(renderTable(
		[]string{"Status", "Part"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))
	return nil
}

func diffPart(oldPkg, newPkg *opc.Package, part string) error {
	oldText, err := oldPkg.ReadText(part)
	if err != nil {
		return fmt.Errorf("part %s not in baseline package", part)
	}
	newText, err := newPkg.ReadText(part)
	if err != nil {
		return fmt.Errorf("part %s not in edited package", part)
	}

	dmp := diffpatch.New()
	diffs := dmp.DiffMain(oldText, newText, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	insert := color.New(color.FgGreen)
	remove := color.New(color.FgRed, color.CrossedOut)
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffInsert:
			insert.Print(d.Text)
		case diffpatch.DiffDelete:
			remove.Print(d.Text)
		case diffpatch.DiffEqual:
			fmt.Print(d.Text)
		}
	}
	fmt.Println()
	return nil
}

// ApplyCmd executes a plan file against a package.
type ApplyCmd struct {
	Docx       string `arg:"" help:"Baseline package" type:"existingfile"`
	Plan       string `required:"" help:"Plan file (.json, .yaml or .yml)" type:"existingfile"`
	Out        string `required:"" help:"Output package path"`
	BestEffort bool   `help:"Degrade missing-target operations instead of aborting"`
	Report     string `help:"Write the apply report as JSON to this path"`
}

func (c *ApplyCmd) Run() error {
	_, data, err := openPackageFile(c.Docx)
	if err != nil {
		return err
	}

	planData, err := os.ReadFile(c.Plan)
	if err != nil {
		return fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan *redline.Plan
	switch strings.ToLower(filepath.Ext(c.Plan)) {
	case ".yaml", ".yml":
		plan, err = redline.DecodePlanYAML(planData)
	default:
		plan, err = redline.DecodePlanJSON(planData)
	}
	if err != nil {
		return err
	}

	opts := redline.DefaultApplyOptions()
	if c.BestEffort {
		opts.Strict = false
	}

	result, err := redline.ApplyPlan(data, plan, opts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.Out, result.Bytes, 0o644); err != nil {
		return fmt.Errorf("failed to write output package: %w", err)
	}

	rows := make([][]string, 0, len(result.Reports))
	for _, report := range result.Reports {
		replacements := ""
		if report.Replacements != nil {
			replacements = strconv.Itoa(*report.Replacements)
		}
		rows = append(rows, []string{
			strconv.Itoa(report.Index),
			string(report.Type),
			report.Path,
			report.Effect,
			replacements,
		})
	}
	fmt.Println(renderTable(
		[]string{"#", "Operation", "Part", "Effect", "Repl"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
	))
	fmt.Printf("apply %s: %d part(s) modified, wrote %s\n", result.ApplyID, len(result.ModifiedParts), c.Out)

	if c.Report != "" {
		reportJSON, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Report, reportJSON, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("redline %s\n", version)
	return nil
}
