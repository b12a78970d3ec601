package config

import (
	"fmt"
	"os"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML overlay. Absent keys keep the env value.
type fileConfig struct {
	Version       string            `yaml:"version"`
	APIBaseURL    string            `yaml:"api_base_url"`
	HostOverrides map[string]string `yaml:"host_overrides"`
	Endpoints     *Endpoints        `yaml:"endpoints"`
	Modules       *Modules          `yaml:"modules"`
	UI            *UI               `yaml:"ui"`
	TokenPolicy   map[string]string `yaml:"token_policy"`
}

// ApplyFile overlays the YAML file at path onto c.
// An empty path is a no-op.
func (c *Config) ApplyFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return c.applyYAML(data)
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.Version != "" {
		c.Version = fc.Version
	}
	if fc.APIBaseURL != "" {
		c.APIBaseURL = fc.APIBaseURL
	}
	for host, base := range fc.HostOverrides {
		if c.HostOverrides == nil {
			c.HostOverrides = make(map[string]string)
		}
		c.HostOverrides[host] = base
	}
	if fc.Endpoints != nil {
		mergeEndpoints(&c.Endpoints, *fc.Endpoints)
	}
	if fc.Modules != nil {
		c.Modules = *fc.Modules
	}
	if fc.UI != nil {
		mergeUI(&c.UI, *fc.UI)
	}
	for variant, policy := range fc.TokenPolicy {
		v, ok := domain.ParseVariant(variant)
		if !ok {
			return fmt.Errorf("token_policy: unknown variant %q", variant)
		}
		if c.TokenPolicy == nil {
			c.TokenPolicy = make(map[domain.Variant]TokenPolicy)
		}
		c.TokenPolicy[v] = parseTokenPolicy(policy)
	}
	return nil
}

func mergeEndpoints(dst *Endpoints, src Endpoints) {
	if src.Auth != "" {
		dst.Auth = src.Auth
	}
	if src.Proprietarios != "" {
		dst.Proprietarios = src.Proprietarios
	}
	if src.Imoveis != "" {
		dst.Imoveis = src.Imoveis
	}
	if src.Participacoes != "" {
		dst.Participacoes = src.Participacoes
	}
	if src.Alugueis != "" {
		dst.Alugueis = src.Alugueis
	}
	if src.Relatorios != "" {
		dst.Relatorios = src.Relatorios
	}
	if src.Health != "" {
		dst.Health = src.Health
	}
}

func mergeUI(dst *UI, src UI) {
	if src.AlertAutoHide > 0 {
		dst.AlertAutoHide = src.AlertAutoHide
	}
	if src.FadeIn > 0 {
		dst.FadeIn = src.FadeIn
	}
	if src.FadeOut > 0 {
		dst.FadeOut = src.FadeOut
	}
	if src.ItemsPerPage > 0 {
		dst.ItemsPerPage = src.ItemsPerPage
	}
	if src.DefaultTab != "" {
		dst.DefaultTab = src.DefaultTab
	}
}
