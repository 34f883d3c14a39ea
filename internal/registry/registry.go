package registry

import (
	"fmt"
	"net/url"
	"regexp"

	"shortvid-saver/internal/extract"
	"shortvid-saver/pkg/models"
)

// Registry manages platform schema descriptors and provides URL-based
// platform selection
type Registry struct {
	descriptors map[models.Platform]*extract.Descriptor
	ordered     []*extract.Descriptor
	patterns    map[string]models.Platform
}

// NewRegistry creates an empty platform registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[models.Platform]*extract.Descriptor),
		patterns:    make(map[string]models.Platform),
	}
}

// Register registers a platform descriptor with its URL patterns
func (r *Registry) Register(desc *extract.Descriptor, patterns []string) error {
	if desc == nil {
		return fmt.Errorf("descriptor cannot be nil")
	}

	if _, exists := r.descriptors[desc.Platform]; !exists {
		r.ordered = append(r.ordered, desc)
	}
	r.descriptors[desc.Platform] = desc

	for _, pattern := range patterns {
		r.patterns[pattern] = desc.Platform
	}

	return nil
}

// Descriptors returns the registered descriptors in registration order.
// This is the set the engine and resolver are constructed from, so the
// per-platform enable flags decide what gets extracted at all.
func (r *Registry) Descriptors() []*extract.Descriptor {
	return r.ordered
}

// RegisterDefaults registers all supported platforms honoring the
// per-platform enable flags
func (r *Registry) RegisterDefaults(config *models.Config) error {
	if config.Platforms.Douyin.Enabled {
		douyinPatterns := []string{
			`https?://(?:www\.)?douyin\.com/video/\d+`,
			`https?://v\.douyin\.com/[\w-]+`,
			`https?://(?:www\.)?iesdouyin\.com/share/video/\d+`,
		}
		if err := r.Register(extract.Douyin(), douyinPatterns); err != nil {
			return fmt.Errorf("error registering Douyin descriptor: %w", err)
		}
	}

	if config.Platforms.TikTok.Enabled {
		tiktokPatterns := []string{
			`https?://(?:www\.)?tiktok\.com/@[^/]+/video/\d+`,
			`https?://(?:www\.)?tiktok\.com/t/\w+`,
			`https?://v[tm]\.tiktok\.com/\w+`,
		}
		if err := r.Register(extract.TikTok(), tiktokPatterns); err != nil {
			return fmt.Errorf("error registering TikTok descriptor: %w", err)
		}
	}

	return nil
}

// Get returns the descriptor for the given platform
func (r *Registry) Get(platform models.Platform) (*extract.Descriptor, error) {
	desc, exists := r.descriptors[platform]
	if !exists {
		return nil, fmt.Errorf("no descriptor registered for platform: %s", platform)
	}

	return desc, nil
}

// DescriptorForURL returns the descriptor matching the given URL
func (r *Registry) DescriptorForURL(rawURL string) (*extract.Descriptor, models.Platform, error) {
	platform, err := r.DetectPlatform(rawURL)
	if err != nil {
		return nil, "", err
	}

	desc, err := r.Get(platform)
	if err != nil {
		return nil, "", err
	}

	return desc, platform, nil
}

// DetectPlatform detects the platform from a URL, first by the registered
// patterns, then by hostname substring
func (r *Registry) DetectPlatform(rawURL string) (models.Platform, error) {
	for pattern, platform := range r.patterns {
		if matched, _ := regexp.MatchString(pattern, rawURL); matched {
			return platform, nil
		}
	}

	return r.detectPlatformByHost(rawURL)
}

func (r *Registry) detectPlatformByHost(rawURL string) (models.Platform, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unsupported platform for URL: %s", rawURL)
	}

	hostname := u.Hostname()
	for platform, desc := range r.descriptors {
		if desc.MatchesHost(hostname) || desc.IsShortHost(hostname) {
			return platform, nil
		}
	}

	return "", fmt.Errorf("unsupported platform for URL: %s", rawURL)
}

// IsShortURL reports whether the URL points at a redirect-only share host
func (r *Registry) IsShortURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, desc := range r.descriptors {
		if desc.IsShortHost(u.Hostname()) {
			return true
		}
	}
	return false
}

// ValidateURL validates if the URL is supported by any registered platform
func (r *Registry) ValidateURL(rawURL string) bool {
	_, err := r.DetectPlatform(rawURL)
	return err == nil
}

// ListPlatforms returns all registered platforms
func (r *Registry) ListPlatforms() []models.Platform {
	platforms := make([]models.Platform, 0, len(r.descriptors))
	for platform := range r.descriptors {
		platforms = append(platforms, platform)
	}
	return platforms
}

// PlatformPatterns returns all URL patterns for a platform
func (r *Registry) PlatformPatterns(platform models.Platform) []string {
	var patterns []string
	for pattern, p := range r.patterns {
		if p == platform {
			patterns = append(patterns, pattern)
		}
	}
	return patterns
}

// Count returns the number of registered descriptors
func (r *Registry) Count() int {
	return len(r.descriptors)
}

// Clear removes all registered descriptors and patterns
func (r *Registry) Clear() {
	r.descriptors = make(map[models.Platform]*extract.Descriptor)
	r.ordered = nil
	r.patterns = make(map[string]models.Platform)
}
