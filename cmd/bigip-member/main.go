package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Sh00ty/bigip-member/internal/bigip"
	"github.com/Sh00ty/bigip-member/internal/models"
	"github.com/Sh00ty/bigip-member/internal/reconciler"
)

func loggerLevelFromString(level string) zerolog.Level {
	level = strings.ToLower(level)
	switch level {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

// Config is the connection surface of the tool; desired member state comes
// from flags or a spec file, credentials never do.
type Config struct {
	LoggerLevel string `envconfig:"LOGGER_LEVEL,optional"`

	Server        string        `envconfig:"BIGIP_SERVER"`
	ServerPort    uint16        `envconfig:"BIGIP_SERVER_PORT,default=443"`
	User          string        `envconfig:"BIGIP_USER"`
	Password      string        `envconfig:"BIGIP_PASSWORD"`
	ValidateCerts bool          `envconfig:"BIGIP_VALIDATE_CERTS,default=true"`
	Timeout       time.Duration `envconfig:"BIGIP_TIMEOUT,default=30s"`
}

// specFile is the YAML form of a member spec. Pointer fields keep absent
// keys distinguishable from zero values.
type specFile struct {
	State           string  `yaml:"state"`
	Pool            string  `yaml:"pool"`
	Partition       string  `yaml:"partition"`
	Host            string  `yaml:"host"`
	Port            *int    `yaml:"port"`
	ConnectionLimit *int64  `yaml:"connectionLimit"`
	RateLimit       *int64  `yaml:"rateLimit"`
	Ratio           *int64  `yaml:"ratio"`
	PriorityGroup   *int64  `yaml:"priorityGroup"`
	Description     *string `yaml:"description"`
	SessionState    *string `yaml:"sessionState"`
	MonitorState    *string `yaml:"monitorState"`
	PreserveNode    *bool   `yaml:"preserveNode"`
}

type flagValues struct {
	state           string
	pool            string
	partition       string
	host            string
	port            int
	connectionLimit int64
	rateLimit       int64
	ratio           int64
	priorityGroup   int64
	description     string
	sessionState    string
	monitorState    string
	preserveNode    bool
	dryRun          bool
	specPath        string
}

func main() {
	var fv flagValues

	root := &cobra.Command{
		Use:           "bigip-member",
		Short:         "Reconciles a single BIG-IP LTM pool member onto its desired state",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, fv)
		},
	}

	root.Flags().StringVar(&fv.state, "state", "present", "Desired member state: present or absent")
	root.Flags().StringVar(&fv.pool, "pool", "", "Pool name, must exist")
	root.Flags().StringVar(&fv.partition, "partition", models.DefaultPartition, "Partition for pool and host")
	root.Flags().StringVar(&fv.host, "host", "", "Member IP address")
	root.Flags().IntVar(&fv.port, "port", 0, "Member port")
	root.Flags().Int64Var(&fv.connectionLimit, "connection-limit", 0, "Connection limit, 0 disables the limit")
	root.Flags().Int64Var(&fv.rateLimit, "rate-limit", 0, "Rate limit in connections per second, 0 disables the limit")
	root.Flags().Int64Var(&fv.ratio, "ratio", 0, "Ratio weight, 1-100")
	root.Flags().Int64Var(&fv.priorityGroup, "priority-group", 0, "Priority group number")
	root.Flags().StringVar(&fv.description, "description", "", "Member description")
	root.Flags().StringVar(&fv.sessionState, "session-state", "", "Session availability: enabled or disabled")
	root.Flags().StringVar(&fv.monitorState, "monitor-state", "", "Monitor availability: enabled or disabled")
	root.Flags().BoolVar(&fv.preserveNode, "preserve-node", false, "Keep the node object when removing the member")
	root.Flags().BoolVar(&fv.dryRun, "dry-run", false, "Report what would change without mutating anything")
	root.Flags().StringVarP(&fv.specPath, "file", "f", "", "Read the member spec from a YAML file; flags override it")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, fv flagValues) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	_ = godotenv.Load()

	appCfg := Config{}
	if err := envconfig.Init(&appCfg); err != nil {
		return fmt.Errorf("reading app config: %w", err)
	}
	log.Logger = log.Level(loggerLevelFromString(appCfg.LoggerLevel)).Output(os.Stderr)

	spec, err := buildSpec(cmd, fv)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	clnt, err := bigip.NewClient(bigip.Config{
		Server:        appCfg.Server,
		Port:          appCfg.ServerPort,
		User:          appCfg.User,
		Password:      appCfg.Password,
		ValidateCerts: appCfg.ValidateCerts,
		Timeout:       appCfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating control plane client: %w", err)
	}

	res, err := reconciler.New(clnt).Reconcile(ctx, spec)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}

// buildSpec merges the optional spec file with flags; an explicitly set
// flag always wins.
func buildSpec(cmd *cobra.Command, fv flagValues) (models.MemberSpec, error) {
	spec := models.MemberSpec{
		State:     models.StatePresent,
		Partition: models.DefaultPartition,
	}

	if fv.specPath != "" {
		raw, err := os.ReadFile(fv.specPath)
		if err != nil {
			return spec, fmt.Errorf("reading spec file: %w", err)
		}
		var sf specFile
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return spec, fmt.Errorf("parsing spec file %s: %w", fv.specPath, err)
		}
		applyFile(&spec, sf)
	}

	changed := cmd.Flags().Changed
	if changed("state") {
		spec.State = models.State(fv.state)
	}
	if changed("pool") {
		spec.Pool = fv.pool
	}
	if changed("partition") {
		spec.Partition = fv.partition
	}
	if changed("host") {
		spec.Host = fv.host
	}
	if changed("port") {
		spec.Port = &fv.port
	}
	if changed("connection-limit") {
		spec.ConnectionLimit = &fv.connectionLimit
	}
	if changed("rate-limit") {
		spec.RateLimit = &fv.rateLimit
	}
	if changed("ratio") {
		spec.Ratio = &fv.ratio
	}
	if changed("priority-group") {
		spec.PriorityGroup = &fv.priorityGroup
	}
	if changed("description") {
		spec.Description = &fv.description
	}
	if changed("session-state") {
		intent := models.Intent(fv.sessionState)
		spec.SessionState = &intent
	}
	if changed("monitor-state") {
		intent := models.Intent(fv.monitorState)
		spec.MonitorState = &intent
	}
	if changed("preserve-node") {
		spec.PreserveNode = fv.preserveNode
	}
	spec.DryRun = fv.dryRun
	return spec, nil
}

func applyFile(spec *models.MemberSpec, sf specFile) {
	if sf.State != "" {
		spec.State = models.State(sf.State)
	}
	if sf.Pool != "" {
		spec.Pool = sf.Pool
	}
	if sf.Partition != "" {
		spec.Partition = sf.Partition
	}
	if sf.Host != "" {
		spec.Host = sf.Host
	}
	spec.Port = sf.Port
	spec.ConnectionLimit = sf.ConnectionLimit
	spec.RateLimit = sf.RateLimit
	spec.Ratio = sf.Ratio
	spec.PriorityGroup = sf.PriorityGroup
	spec.Description = sf.Description
	if sf.SessionState != nil {
		intent := models.Intent(*sf.SessionState)
		spec.SessionState = &intent
	}
	if sf.MonitorState != nil {
		intent := models.Intent(*sf.MonitorState)
		spec.MonitorState = &intent
	}
	if sf.PreserveNode != nil {
		spec.PreserveNode = *sf.PreserveNode
	}
}
