package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentRule maps a user-agent pattern to a canonical bot label.
type AgentRule struct {
	Pattern string `yaml:"pattern"`
	Label   string `yaml:"label"`
}

// PathRule maps a request-path pattern to a probe category.
type PathRule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// Trust is the kind of network an origin belongs to.
type Trust string

const (
	TrustCrawler Trust = "crawler" // operator runs a search/AI crawler fleet from it
	TrustCloud   Trust = "cloud"
	TrustScraper Trust = "scraper"
	TrustOther   Trust = "other"
)

// Origin is one row of the autonomous-system table.
type Origin struct {
	ASN   string `yaml:"asn" json:"asn"`
	Org   string `yaml:"org" json:"org"`
	Trust Trust  `yaml:"trust" json:"trust"`
}

// Rules is the single versioned set of lookup tables the classifiers are built
// from. It is loaded once at startup and never mutated afterwards.
type Rules struct {
	Version int                 `yaml:"version"`
	Agents  []AgentRule         `yaml:"agents"`
	Origins []Origin            `yaml:"origins"`
	Paths   []PathRule          `yaml:"paths"`
	Traps   []string            `yaml:"traps"`
	Skip    []string            `yaml:"skip"`
	Verify  map[string][]string `yaml:"verify"`
	Links   map[string][]string `yaml:"links"`
}

// LoadRules reads a YAML rules file and overlays it on DefaultRules. Every
// non-empty section in the file replaces the built-in section wholesale.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	if file.Version != 0 {
		rules.Version = file.Version
	}
	if len(file.Agents) > 0 {
		rules.Agents = file.Agents
	}
	if len(file.Origins) > 0 {
		rules.Origins = file.Origins
	}
	if len(file.Paths) > 0 {
		rules.Paths = file.Paths
	}
	if len(file.Traps) > 0 {
		rules.Traps = file.Traps
	}
	if len(file.Skip) > 0 {
		rules.Skip = file.Skip
	}
	if len(file.Verify) > 0 {
		rules.Verify = file.Verify
	}
	if len(file.Links) > 0 {
		rules.Links = file.Links
	}
	return rules, nil
}

// DefaultRules returns a fresh copy of the built-in tables.
func DefaultRules() *Rules {
	googleDomains := []string{"googlebot.com", "google.com"}
	return &Rules{
		Version: 3,
		// Order matters: vendor-specific variants come before the generic
		// crawler name they contain.
		Agents: []AgentRule{
			{`GPTBot`, "GPTBot"},
			{`ChatGPT-User`, "ChatGPT-User"},
			{`OAI-SearchBot`, "OAI-SearchBot"},
			{`ClaudeBot`, "ClaudeBot"},
			{`Claude-Web`, "Claude-Web"},
			{`anthropic-ai`, "AnthropicBot"},
			{`PerplexityBot`, "PerplexityBot"},
			{`Google-Extended`, "Google-Extended"},
			{`Googlebot-Image`, "Googlebot-Image"},
			{`Googlebot`, "Googlebot"},
			{`GoogleOther`, "GoogleOther"},
			{`Google-InspectionTool`, "Google-InspectionTool"},
			{`AdsBot-Google`, "AdsBot-Google"},
			{`YouBot`, "YouBot"},
			{`Applebot`, "Applebot"},
			{`Bingbot`, "Bingbot"},
			{`DuckDuckBot`, "DuckDuckBot"},
			{`YandexBot`, "YandexBot"},
			{`Bytespider`, "Bytespider"},
			{`facebookexternalhit`, "FacebookBot"},
			{`Twitterbot`, "Twitterbot"},
			{`LinkedInBot`, "LinkedInBot"},
			{`Slackbot`, "Slackbot"},
			{`CCBot`, "CCBot"},
			{`DataForSeoBot`, "DataForSeoBot"},
			{`SemrushBot`, "SemrushBot"},
			{`AhrefsBot`, "AhrefsBot"},
			{`MJ12bot`, "MJ12bot"},
			{`DotBot`, "DotBot"},
			{`^$`, "EmptyUA"},
		},
		Origins: []Origin{
			{"15169", "Google", TrustCrawler},
			{"19527", "Google", TrustCrawler},
			{"36040", "Google", TrustCrawler},
			{"8075", "Microsoft", TrustCrawler},
			{"8068", "Microsoft", TrustCrawler},
			{"16509", "Amazon", TrustCloud},
			{"14618", "Amazon", TrustCloud},
			{"396982", "GoogleCloud", TrustCloud},
			{"13335", "Cloudflare", TrustCloud},
			{"54113", "Fastly", TrustCloud},
			{"20940", "Akamai", TrustCloud},
			{"14061", "DigitalOcean", TrustCloud},
			{"24940", "Hetzner", TrustCloud},
			{"16276", "OVH", TrustCloud},
			{"63949", "Linode", TrustCloud},
			{"45102", "Alibaba", TrustCloud},
			{"9009", "M247", TrustScraper},
			{"132203", "Tencent", TrustScraper},
			{"6939", "HurricaneElectric", TrustOther},
			{"3257", "GTT", TrustOther},
			{"174", "Cogent", TrustOther},
			{"2516", "KDDI", TrustOther},
		},
		Paths: []PathRule{
			{`/wp-admin`, "WordPressProbe"},
			{`/wp-login`, "WordPressProbe"},
			{`/wp-content`, "WordPressProbe"},
			{`/wordpress`, "WordPressProbe"},
			{`/xmlrpc\.php`, "WordPressProbe"},
			{`/wp-includes`, "WordPressProbe"},
			{`/wp-json`, "WordPressProbe"},
			{`/\.env\.`, "ConfigProbe"},
			{`/artisan`, "ConfigProbe"},
			{`/\.env`, "ConfigProbe"},
			{`/\.git`, "VCSProbe"},
			{`/\.ssh`, "CredentialProbe"},
			{`/config\.(php|yml|yaml|json|ini)`, "ConfigProbe"},
			{`/setup-config\.php`, "ConfigProbe"},
			{`/configuration\.php`, "ConfigProbe"},
			{`/settings\.php`, "ConfigProbe"},
			{`/v1/config`, "ConfigProbe"},
			{`/actuator`, "ConfigProbe"},
			{`/swagger`, "ConfigProbe"},
			{`/admin\.php`, "AdminProbe"},
			{`/phpmyadmin`, "AdminProbe"},
			{`/phpinfo`, "AdminProbe"},
			{`/shell\.php`, "WebShellProbe"},
			{`/cmd\.php`, "WebShellProbe"},
			{`/eval-stdin\.php`, "WebShellProbe"},
			{`/backup`, "BackupProbe"},
			{`/dump\.sql`, "BackupProbe"},
			{`/db\.sql`, "BackupProbe"},
			{`/database\.sql`, "BackupProbe"},
			{`/\.DS_Store`, "VCSProbe"},
			{`/\.htaccess`, "ConfigProbe"},
			{`/\.htpasswd`, "CredentialProbe"},
			{`/cgi-bin`, "VulnScan"},
			{`/etc/passwd`, "CredentialProbe"},
			{`/proc/self`, "VulnScan"},
			{`/vendor/phpunit`, "VulnScan"},
			{`\.\./`, "PathTraversal"},
			{`%2e%2e%2f`, "PathTraversal"},
		},
		Traps: []string{"/hidden-trap/", "/llm-internal/"},
		Skip: []string{
			"/_next/static",
			"/_next/image",
			"/favicon.ico",
			"/favicon.png",
			"/robots.txt",
			"/sitemap.xml",
			"/api/",
		},
		Verify: map[string][]string{
			"Googlebot":             googleDomains,
			"Googlebot-Image":       googleDomains,
			"Google-Extended":       googleDomains,
			"GoogleOther":           googleDomains,
			"Google-InspectionTool": googleDomains,
			"AdsBot-Google":         googleDomains,
			"Bingbot":               {"search.msn.com"},
			"Applebot":              {"applebot.apple.com"},
			"YandexBot":             {"yandex.ru", "yandex.net", "yandex.com"},
		},
		Links: map[string][]string{
			"/": {"/articles", "/terms/geo-shock-index-a", "/experiments"},
			"/articles": {
				"/articles/what-is-geo",
				"/articles/why-jsonld-matters",
				"/articles/ai-and-content-creators",
				"/articles/what-is-aio",
				"/articles/what-is-aeo",
				"/articles/what-is-ai-seo",
				"/articles/what-is-ai-search",
			},
			"/terms":       {"/terms/geo-shock-a", "/terms/geo-shock-index-a"},
			"/experiments": {},
			"/stats":       {},
		},
	}
}
