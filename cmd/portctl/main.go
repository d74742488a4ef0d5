// Portctl - port table manager for switch ASIC ports
//
// A CLI for provisioning and inspecting the ports of a switch ASIC through
// the $PORT table:
//   - Field-level reads and writes with the hardware verbs sequenced for you
//   - Name, front-panel index and connector lookups
//   - Link status watch and MAC counters
//   - YAML port profiles applied idempotently
//   - Audit logging of all writes
//
// Backends:
//
//	--redis <addr>         switch Redis (CONFIG_DB / STATE_DB / COUNTERS_DB)
//	--ssh-host <host>      same, reached through an SSH tunnel
//	--sim <n>              in-memory device with n front-panel ports
//
// Port selectors:
//
//	12, 0-7,16            device port numbers
//	1/0                   port name
//	fp:<idx>              front-panel index
//	hdl:<conn>/<chnl>     connector and channel
//	all                   every provisioned port
//
// Examples:
//
//	portctl --sim 8 list
//	portctl show 1/0
//	portctl set 1/0 tx_mtu=9100 rx_mtu=9100
//	portctl add fp:3 speed=BF_SPEED_25G fec=BF_FEC_TYP_NONE n_lanes=1
//	portctl apply leaf-uplinks.yaml --dry-run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/portmgr/pkg/audit"
	"github.com/newtron-network/portmgr/pkg/auth"
	"github.com/newtron-network/portmgr/pkg/cli"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/hal/fake"
	"github.com/newtron-network/portmgr/pkg/hal/sonic"
	"github.com/newtron-network/portmgr/pkg/port"
	"github.com/newtron-network/portmgr/pkg/settings"
	"github.com/newtron-network/portmgr/pkg/util"
	"github.com/newtron-network/portmgr/pkg/version"
)

var (
	// Backend selection
	redisAddr string
	sshHost   string
	sshUser   string
	sshPort   int
	simPorts  int

	// Global option flags
	deviceID   uint32
	verbose    bool
	jsonOutput bool
	strictMode bool
	userName   string

	// Global state
	userSettings *settings.Settings
	permChecker  *auth.Checker
)

// passwordEnv supplies the SSH password non-interactively.
const passwordEnv = "PORTCTL_SSH_PASSWORD"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "portctl",
	Short:             "Switch port table manager",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Portctl reads and writes the $PORT table of a switch ASIC.

Field names are case-insensitive and the leading "$" is optional:
$TX_MTU, TX_MTU and tx_mtu name the same field.

  portctl [backend flags] <verb> <port-selector> [field=value ...]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set log level: quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		if isSettingsOrHelp(cmd) {
			return nil
		}

		// Apply defaults from settings
		if !cmd.Flags().Changed("device") {
			deviceID = userSettings.DefaultDevice
		}
		if redisAddr == "" {
			redisAddr = userSettings.GetRedisAddr()
		}
		if sshHost == "" {
			sshHost = userSettings.SSHHost
		}
		if sshUser == "" {
			sshUser = userSettings.SSHUser
		}
		if sshPort == 0 {
			sshPort = userSettings.GetSSHPort()
		}
		if !cmd.Flags().Changed("strict") {
			strictMode = userSettings.GetFieldErrorPolicy() == port.PolicyStrict.String()
		}
		if userName == "" {
			userName = currentUser()
		}
		permChecker = auth.NewChecker(userSettings.Access, userName)

		auditLogger, err := audit.NewFileLogger(userSettings.GetAuditLogPath(), audit.RotationConfig{
			MaxSize:    userSettings.GetAuditMaxSize(),
			MaxBackups: userSettings.GetAuditMaxBackups(),
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Switch Redis address (host:port)")
	rootCmd.PersistentFlags().StringVar(&sshHost, "ssh-host", "", "Reach the switch Redis through SSH to this host")
	rootCmd.PersistentFlags().StringVar(&sshUser, "ssh-user", "", "SSH user")
	rootCmd.PersistentFlags().IntVar(&sshPort, "ssh-port", 0, "SSH port")
	rootCmd.PersistentFlags().IntVar(&simPorts, "sim", 0, "Use an in-memory device with N front-panel ports")

	rootCmd.PersistentFlags().Uint32VarP(&deviceID, "device", "d", 0, "ASIC device ID")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")
	rootCmd.PersistentFlags().BoolVar(&strictMode, "strict", false, "Abort writes on incomplete field groups and setter failures")
	rootCmd.PersistentFlags().StringVar(&userName, "user", "", "User recorded in audit events")

	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Port Queries:"},
		&cobra.Group{ID: "mutate", Title: "Port Configuration:"},
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{listCmd, showCmd, getCmd, statsCmd, watchCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{addCmd, setCmd, deleteCmd, clearCmd} {
		cmd.GroupID = "mutate"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{applyCmd, saveCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("portctl")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (set version.Version with -ldflags)\n", tool)
	} else {
		fmt.Printf("%s %s\n", tool, version.Info())
	}
}

func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "help", "version", "completion":
			return true
		}
	}
	return false
}

// checkPermission gates an operation on the access policy in settings.
func checkPermission(perm auth.Permission, sel string) error {
	ctx := auth.NewContext().WithDevice(strconv.FormatUint(uint64(deviceID), 10)).WithPort(sel)
	return permChecker.Check(perm, ctx)
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// ============================================================================
// Backend
// ============================================================================

// backend is what the port table needs from a device.
type backend interface {
	hal.Driver
	hal.Pipeline
}

// session is one connected device and the table over it.
type session struct {
	dev   hal.DevID
	tbl   *port.Table
	sonic *sonic.Driver // nil for --sim
}

func (s *session) Close() {
	s.tbl.Close()
	if s.sonic != nil {
		if err := s.sonic.Close(); err != nil {
			util.Debugf("closing backend: %v", err)
		}
	}
}

// connect opens the selected backend. Options are applied after the
// defaults taken from the flags, so callers may override the policy.
func connect(ctx context.Context, opts ...port.Option) (*session, error) {
	dev := hal.DevID(deviceID)
	s := &session{dev: dev}

	var drv backend
	switch {
	case simPorts > 0:
		f := fake.New()
		f.Populate(dev, simPorts)
		f.AutoLink = true
		drv = f
	case sshHost != "":
		if sshUser == "" {
			return nil, fmt.Errorf("ssh user required: use --ssh-user or 'portctl settings set ssh_user <user>'")
		}
		pass, err := sshPassword()
		if err != nil {
			return nil, err
		}
		d, err := sonic.NewOverSSH(sshHost, sshPort, sshUser, pass, dev)
		if err != nil {
			return nil, err
		}
		s.sonic, drv = d, d
	default:
		d := sonic.New(redisAddr, dev)
		s.sonic, drv = d, d
	}
	if s.sonic != nil {
		if err := s.sonic.Connect(ctx); err != nil {
			s.sonic.Close()
			return nil, err
		}
	}

	policy := port.PolicyWarn
	if strictMode {
		policy = port.PolicyStrict
	}
	all := append([]port.Option{port.WithPolicy(policy), port.WithUser(userName)}, opts...)
	s.tbl = port.New(drv, drv, all...)
	return s, nil
}

func sshPassword() (string, error) {
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("ssh password required: set %s", passwordEnv)
	}
	fmt.Fprintf(os.Stderr, "%s@%s password: ", sshUser, sshHost)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// withSession runs fn against a connected device and closes it afterwards.
// The context is cancelled on SIGINT and SIGTERM.
func withSession(fn func(ctx context.Context, s *session) error, opts ...port.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := connect(ctx, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// selectPorts resolves every selector argument, keeping first-seen order
// and dropping duplicates.
func selectPorts(ctx context.Context, s *session, selectors []string) ([]hal.DevPort, error) {
	var out []hal.DevPort
	seen := make(map[hal.DevPort]bool)
	for _, sel := range selectors {
		ports, err := s.tbl.Select(ctx, s.dev, sel)
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", sel, err)
		}
		for _, p := range ports {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// ============================================================================
// Output Helpers
// ============================================================================

func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }

func printJSON(v any) error { return cli.PrintJSON(os.Stdout, v) }

// portLabel is "<dev_port> (<name>)" when the port has a name.
func portLabel(ctx context.Context, s *session, p hal.DevPort) string {
	name, err := s.tbl.Driver().PortToName(ctx, s.dev, p)
	if err != nil || name == "" {
		return fmt.Sprintf("%d", p)
	}
	return fmt.Sprintf("%d (%s)", p, name)
}

func fieldList(names []string) string {
	return strings.Join(names, ", ")
}
