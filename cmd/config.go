package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configForce bool

// configDirFunc locates ~/.config/bugboard. Tests swap it for a temp dir.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bugboard"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit settings",
	Long: `Show or manage bugboard configuration.

Running bare 'bugboard config' is the same as 'bugboard config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print each setting and where it came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit config.yaml with $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Replace an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

const configTemplate = `# bugboard configuration
# See: bugboard config show (for effective values and sources)

# State directory for the database, pid file and server log
# state_dir: {{ .StateDir }}

# SQLite database path
# db_path: {{ .DBPath }}

store:
  # sqlite (persistent) or memory (seeded demo data, lost on exit)
  backend: "{{ .Backend }}"
  # Simulated round-trip delay for the memory backend, e.g. "300ms"
  latency: "{{ .Latency }}"

# Values used when a new bug leaves reporter or assignee blank
defaults:
  reporter: "{{ .Reporter }}"
  assignee: "{{ .Assignee }}"

log:
  # debug, info, warn, error
  level: "{{ .LogLevel }}"
  # auto, console, json
  format: "{{ .LogFormat }}"

serve:
  port: {{ .Port }}

# Claude triage and note import; the key may also come from BUGBOARD_ANTHROPIC_API_KEY
anthropic:
  # api_key: ""
  model: "{{ .Model }}"
`

var configTmpl = template.Must(template.New("config").Parse(configTemplate))

type configTemplateData struct {
	StateDir  string
	DBPath    string
	Backend   string
	Latency   string
	Reporter  string
	Assignee  string
	LogLevel  string
	LogFormat string
	Port      int
	Model     string
}

// renderConfig fills the template from the effective settings, so init
// after env overrides writes those values down.
func renderConfig() ([]byte, error) {
	var buf bytes.Buffer
	err := configTmpl.Execute(&buf, configTemplateData{
		StateDir:  viper.GetString("state_dir"),
		DBPath:    viper.GetString("db_path"),
		Backend:   viper.GetString("store.backend"),
		Latency:   viper.GetString("store.latency"),
		Reporter:  viper.GetString("defaults.reporter"),
		Assignee:  viper.GetString("defaults.assignee"),
		LogLevel:  viper.GetString("log.level"),
		LogFormat: viper.GetString("log.format"),
		Port:      viper.GetInt("serve.port"),
		Model:     viper.GetString("anthropic.model"),
	})
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return buf.Bytes(), nil
}

// configFilePath is --config when given, else config.yaml in the config dir.
func configFilePath() (string, error) {
	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		return path, nil
	}
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if exists && !configForce {
		return fmt.Errorf("%s already exists (pass --force to replace it)", path)
	}

	content, err := renderConfig()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would write %s", path)
		fmt.Fprintf(ui.Out, "\n%s", content)
		return nil
	}
	if exists {
		ui.Warning("Replacing %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	// 0600: the file may end up holding an API key.
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	ui.Success("Wrote %s", path)
	fmt.Fprintf(ui.Out, "\n%s", content)
	return nil
}

type configKeyInfo struct {
	Key    string
	Secret bool
}

// EnvVar is the environment variable viper binds the key to.
func (k configKeyInfo) EnvVar() string {
	return "BUGBOARD_" + strings.ToUpper(strings.ReplaceAll(k.Key, ".", "_"))
}

var configKeys = []configKeyInfo{
	{Key: "state_dir"},
	{Key: "db_path"},
	{Key: "store.backend"},
	{Key: "store.latency"},
	{Key: "defaults.reporter"},
	{Key: "defaults.assignee"},
	{Key: "log.level"},
	{Key: "log.format"},
	{Key: "serve.port"},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "anthropic.model"},
}

func configShowRun() error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	file := fileConfig(path)
	if file == nil {
		ui.Info("No config file at %s, showing defaults and environment", path)
	} else {
		ui.Info("Using %s", path)
	}
	fmt.Fprintln(ui.Out)

	for _, k := range configKeys {
		val := fmt.Sprint(viper.Get(k.Key))
		if k.Secret {
			val = maskSecret(val)
		}
		fmt.Fprintf(ui.Out, "  %-20s %v  %s\n", k.Key, val, k.source(file))
	}
	return nil
}

func maskSecret(v string) string {
	switch {
	case v == "":
		return `""`
	case len(v) <= 8:
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}

// fileConfig loads only the config file, without defaults or env, so
// InConfig answers which keys the file sets. It is nil when the file is
// missing or unreadable.
func fileConfig(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil
	}
	return v
}

// source reports whether the effective value comes from the environment,
// the config file or the built-in default.
func (k configKeyInfo) source(file *viper.Viper) string {
	if _, ok := os.LookupEnv(k.EnvVar()); ok {
		return fmt.Sprintf("(env: %s)", k.EnvVar())
	}
	if file != nil && file.InConfig(k.Key) {
		return "(file)"
	}
	return "(default)"
}

// resolveEditor picks $EDITOR, then $VISUAL.
func resolveEditor() (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, nil
		}
	}
	return "", errors.New("$EDITOR is not set (e.g. export EDITOR=vim)")
}

func configEditRun() error {
	editor, err := resolveEditor()
	if err != nil {
		return err
	}
	path, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file not found: %s (run 'bugboard config init' first)", path)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %s", editor, path)
		return nil
	}
	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c.Run()
}
