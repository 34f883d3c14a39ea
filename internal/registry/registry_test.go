package registry

import (
	"testing"

	"shortvid-saver/internal/extract"
	"shortvid-saver/pkg/models"
)

func enabledConfig() *models.Config {
	config := &models.Config{}
	config.Platforms.Douyin.Enabled = true
	config.Platforms.TikTok.Enabled = true
	return config
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	if registry == nil {
		t.Fatal("Expected registry to be created, got nil")
	}

	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d descriptors", registry.Count())
	}
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()

	patterns := []string{`https?://(?:www\.)?douyin\.com/video/\d+`}
	if err := registry.Register(extract.Douyin(), patterns); err != nil {
		t.Errorf("Expected no error registering descriptor, got %v", err)
	}

	desc, err := registry.Get(models.PlatformDouyin)
	if err != nil {
		t.Errorf("Expected to get registered descriptor, got error: %v", err)
	}
	if desc == nil {
		t.Error("Expected descriptor, got nil")
	}

	if got := registry.PlatformPatterns(models.PlatformDouyin); len(got) != len(patterns) {
		t.Errorf("Expected %d patterns, got %d", len(patterns), len(got))
	}
}

func TestRegisterNilDescriptor(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil, []string{"x"}); err == nil {
		t.Error("Expected error when registering nil descriptor, got nil")
	}
}

func TestRegisterDefaults(t *testing.T) {
	registry := NewRegistry()

	if err := registry.RegisterDefaults(enabledConfig()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if registry.Count() != 2 {
		t.Errorf("Expected 2 descriptors, got %d", registry.Count())
	}
}

func TestRegisterDefaultsHonorsEnableFlags(t *testing.T) {
	registry := NewRegistry()

	config := &models.Config{}
	config.Platforms.Douyin.Enabled = true

	if err := registry.RegisterDefaults(config); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected only the enabled platform, got %d descriptors", registry.Count())
	}
	if _, err := registry.Get(models.PlatformTikTok); err == nil {
		t.Error("Expected disabled platform to be absent")
	}
}

func TestDescriptorsRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	descriptors := registry.Descriptors()
	if len(descriptors) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(descriptors))
	}
	if descriptors[0].Platform != models.PlatformDouyin {
		t.Errorf("Expected douyin first, got %s", descriptors[0].Platform)
	}
	if descriptors[1].Platform != models.PlatformTikTok {
		t.Errorf("Expected tiktok second, got %s", descriptors[1].Platform)
	}

	// re-registering an existing platform must not duplicate the slice entry
	registry.Register(extract.Douyin(), nil)
	if got := len(registry.Descriptors()); got != 2 {
		t.Errorf("Expected 2 descriptors after re-register, got %d", got)
	}

	registry.Clear()
	if got := len(registry.Descriptors()); got != 0 {
		t.Errorf("Expected 0 descriptors after clear, got %d", got)
	}
}

func TestDescriptorsDisabledPlatformExcluded(t *testing.T) {
	registry := NewRegistry()

	config := &models.Config{}
	config.Platforms.TikTok.Enabled = true
	if err := registry.RegisterDefaults(config); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	descriptors := registry.Descriptors()
	if len(descriptors) != 1 {
		t.Fatalf("Expected 1 descriptor, got %d", len(descriptors))
	}
	if descriptors[0].Platform != models.PlatformTikTok {
		t.Errorf("Expected tiktok, got %s", descriptors[0].Platform)
	}
}

func TestGetForNonExistentPlatform(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.Get(models.PlatformDouyin); err == nil {
		t.Error("Expected error getting non-existent descriptor, got nil")
	}
}

func TestDetectPlatform(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	tests := []struct {
		url      string
		expected models.Platform
		err      bool
	}{
		{
			url:      "https://www.douyin.com/video/7300000000000000001",
			expected: models.PlatformDouyin,
			err:      false,
		},
		{
			url:      "https://v.douyin.com/iAbCdEf",
			expected: models.PlatformDouyin,
			err:      false,
		},
		{
			url:      "https://www.tiktok.com/@user/video/7300000000000000001",
			expected: models.PlatformTikTok,
			err:      false,
		},
		{
			url:      "https://vm.tiktok.com/ZMabcdef",
			expected: models.PlatformTikTok,
			err:      false,
		},
		{
			url:      "https://www.iesdouyin.com/share/video/7300000000000000001",
			expected: models.PlatformDouyin,
			err:      false,
		},
		{
			url:      "https://example.com/video",
			expected: "",
			err:      true,
		},
	}

	for _, test := range tests {
		platform, err := registry.DetectPlatform(test.url)

		if test.err {
			if err == nil {
				t.Errorf("Expected error for URL %s, got nil", test.url)
			}
		} else {
			if err != nil {
				t.Errorf("Expected no error for URL %s, got %v", test.url, err)
			}
			if platform != test.expected {
				t.Errorf("Expected platform %s for URL %s, got %s", test.expected, test.url, platform)
			}
		}
	}
}

func TestDetectPlatformByHost(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	// a douyin URL shape the patterns do not cover still detects by hostname
	platform, err := registry.DetectPlatform("https://www.douyin.com/user/MS4wLjAB")
	if err != nil {
		t.Fatalf("Expected hostname detection, got error: %v", err)
	}
	if platform != models.PlatformDouyin {
		t.Errorf("Expected platform douyin, got %s", platform)
	}
}

func TestIsShortURL(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://v.douyin.com/iAbCdEf", true},
		{"https://vt.tiktok.com/ZMabcdef", true},
		{"https://www.douyin.com/video/123", false},
		{"not a url", false},
	}

	for _, test := range tests {
		if got := registry.IsShortURL(test.url); got != test.expected {
			t.Errorf("IsShortURL(%q): expected %t, got %t", test.url, test.expected, got)
		}
	}
}

func TestValidateURL(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	tests := []struct {
		url   string
		valid bool
	}{
		{"https://www.douyin.com/video/7300000000000000001", true},
		{"https://example.com/video", false},
	}

	for _, test := range tests {
		if got := registry.ValidateURL(test.url); got != test.valid {
			t.Errorf("Expected URL %s to be valid %t, got %t", test.url, test.valid, got)
		}
	}
}

func TestDescriptorForURL(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	desc, platform, err := registry.DescriptorForURL("https://www.tiktok.com/@user/video/7300000000000000001")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if platform != models.PlatformTikTok {
		t.Errorf("Expected platform tiktok, got %s", platform)
	}
	if desc == nil || desc.Platform != models.PlatformTikTok {
		t.Error("Expected the tiktok descriptor")
	}
}

func TestListPlatforms(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	platforms := registry.ListPlatforms()
	if len(platforms) != 2 {
		t.Fatalf("Expected 2 platforms, got %d", len(platforms))
	}

	foundDouyin := false
	foundTikTok := false
	for _, platform := range platforms {
		if platform == models.PlatformDouyin {
			foundDouyin = true
		}
		if platform == models.PlatformTikTok {
			foundTikTok = true
		}
	}
	if !foundDouyin {
		t.Error("Expected to find douyin platform")
	}
	if !foundTikTok {
		t.Error("Expected to find tiktok platform")
	}
}

func TestClear(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterDefaults(enabledConfig())

	if registry.Count() == 0 {
		t.Fatal("Expected descriptors before clear")
	}

	registry.Clear()

	if registry.Count() != 0 {
		t.Errorf("Expected 0 descriptors after clear, got %d", registry.Count())
	}
	if registry.ValidateURL("https://www.douyin.com/video/123") {
		t.Error("Expected no URL to validate after clear")
	}
}
