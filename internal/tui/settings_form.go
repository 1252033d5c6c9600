package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/aristath/lyricflow/internal/config"
)

// Save targets offered by the settings form.
const (
	SaveGlobal  = "global"
	SaveProject = "project"
)

// SettingsForm edits the run settings of a config.
type SettingsForm struct {
	form   *huh.Form
	config *config.Config

	// Form field bindings (strings for Huh)
	saveTarget  string
	dataDir     string
	taylorDir   string
	coldplayDir string
	policy      string
	concurrency string
	minCount    string
	minLength   string
}

// NewSettingsForm creates a form prefilled from cfg.
func NewSettingsForm(cfg *config.Config) *SettingsForm {
	m := &SettingsForm{
		config:      cfg,
		saveTarget:  SaveProject,
		dataDir:     cfg.DataDir,
		taylorDir:   cfg.Datasets["taylor"],
		coldplayDir: cfg.Datasets["coldplay"],
		policy:      cfg.Scheduler.Policy,
		concurrency: strconv.Itoa(cfg.Scheduler.Concurrency),
		minCount:    strconv.Itoa(cfg.Analysis.MinCount),
		minLength:   strconv.Itoa(cfg.Analysis.MinLength),
	}
	m.buildForm()
	return m
}

func (m *SettingsForm) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project (.lyricflow/config.json)", SaveProject),
					huh.NewOption("Global (~/.lyricflow/config.json)", SaveGlobal),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("dataDir").
				Title("Data Directory").
				Value(&m.dataDir).
				Placeholder("data"),

			huh.NewInput().
				Key("taylorDir").
				Title("Taylor Swift Lyrics").
				Value(&m.taylorDir).
				Placeholder("taylor-lyrics").
				Validate(notEmpty),

			huh.NewInput().
				Key("coldplayDir").
				Title("Coldplay Lyrics").
				Value(&m.coldplayDir).
				Placeholder("coldplay-lyrics").
				Validate(notEmpty),
		).Title("Datasets"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("policy").
				Title("On Task Failure").
				Options(
					huh.NewOption("Abort after the current round", "abort"),
					huh.NewOption("Keep running independent tasks", "isolate"),
				).
				Value(&m.policy),

			huh.NewInput().
				Key("concurrency").
				Title("Max Tasks Per Round (0: unlimited)").
				Value(&m.concurrency).
				Validate(nonNegative),
		).Title("Scheduler"),

		huh.NewGroup(
			huh.NewInput().
				Key("minCount").
				Title("Common Word: Occurrences Above").
				Value(&m.minCount).
				Validate(nonNegative),

			huh.NewInput().
				Key("minLength").
				Title("Common Word: Length Above").
				Value(&m.minLength).
				Validate(nonNegative),
		).Title("Analysis"),
	)
}

func notEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func nonNegative(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number >= 0")
	}
	return nil
}

// Form returns the underlying huh form.
func (m *SettingsForm) Form() *huh.Form {
	return m.form
}

// SaveTarget returns SaveGlobal or SaveProject.
func (m *SettingsForm) SaveTarget() string {
	return m.saveTarget
}

// Apply copies the form values back into the config and validates it.
func (m *SettingsForm) Apply() error {
	concurrency, err := strconv.Atoi(m.concurrency)
	if err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}
	minCount, err := strconv.Atoi(m.minCount)
	if err != nil {
		return fmt.Errorf("min count: %w", err)
	}
	minLength, err := strconv.Atoi(m.minLength)
	if err != nil {
		return fmt.Errorf("min length: %w", err)
	}

	m.config.DataDir = m.dataDir
	if m.config.Datasets == nil {
		m.config.Datasets = make(map[string]string)
	}
	m.config.Datasets["taylor"] = m.taylorDir
	m.config.Datasets["coldplay"] = m.coldplayDir
	m.config.Scheduler.Policy = m.policy
	m.config.Scheduler.Concurrency = concurrency
	m.config.Analysis.MinCount = minCount
	m.config.Analysis.MinLength = minLength

	return m.config.Validate()
}

// RunSettingsForm runs the form in the terminal, then saves the config to the
// chosen path. It returns the path written.
func RunSettingsForm(cfg *config.Config, globalPath, projectPath string) (string, error) {
	m := NewSettingsForm(cfg)
	if err := m.form.Run(); err != nil {
		return "", err
	}
	if err := m.Apply(); err != nil {
		return "", err
	}

	targetPath := projectPath
	if m.saveTarget == SaveGlobal {
		targetPath = globalPath
	}
	if err := config.Save(cfg, targetPath); err != nil {
		return "", err
	}
	return targetPath, nil
}
