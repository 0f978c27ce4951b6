package fuzzy

import (
	"testing"
)

// runStringTransformationTest is a helper to run tests for string transformation functions.
func runStringTransformationTest(t *testing.T, testName string,
	transformFunc func(string) string, testCases []struct {
		name     string
		input    string
		expected string
	}) {
	t.Helper()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result := transformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", testName, result, tt.expected)
			}
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple text",
			input:    "Hello World",
			expected: "hello world",
		},
		{
			name:     "Text with punctuation",
			input:    "Hello, World!",
			expected: "hello world",
		},
		{
			name:     "Text with accents",
			input:    "Café",
			expected: "cafe",
		},
		{
			name:     "Text with multiple spaces",
			input:    "Hello    World",
			expected: "hello world",
		},
		{
			name:     "Text with leading/trailing spaces",
			input:    "  Hello World  ",
			expected: "hello world",
		},
		{
			name:     "Umlauts",
			input:    "Chli glücklicher",
			expected: "chli glucklicher",
		},
	}

	runStringTransformationTest(t, "Normalize", normalizer.Normalize, tests)
}

func TestNormalizer_NormalizeUtterance(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Plain command",
			input:    "More acoustic",
			expected: "more acoustic",
		},
		{
			name:     "Wake word and politeness",
			input:    "Hey Muze, play something please!",
			expected: "play something",
		},
		{
			name:     "Stacked fillers",
			input:    "OK, could you make it happier?",
			expected: "make it happier",
		},
		{
			name:     "Only filler",
			input:    "please",
			expected: "please",
		},
	}

	runStringTransformationTest(t, "NormalizeUtterance", normalizer.NormalizeUtterance, tests)
}

func TestNormalizer_ContainsPhrase(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		text     string
		phrase   string
		expected bool
	}{
		{"Exact", "more dancey", "more dancey", true},
		{"Inside sentence", "make it more dancey now", "more dancey", true},
		{"Partial word", "danceyness", "dancey", false},
		{"Empty phrase", "anything", "", false},
		{"Missing", "less dancey", "more dancey", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizer.ContainsPhrase(tt.text, tt.phrase); got != tt.expected {
				t.Errorf("ContainsPhrase(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_CalculateSimilarity(t *testing.T) {
	normalizer := NewNormalizer()
	tests := createSimilarityTestCases()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizer.CalculateSimilarity(tt.s1, tt.s2)
			if abs64(result-tt.expected) > tt.delta {
				t.Errorf("CalculateSimilarity() = %f, want %f (±%f)", result, tt.expected, tt.delta)
			}
		})
	}
}

// similarityTestCase represents a test case for similarity calculation.
type similarityTestCase struct {
	name     string
	s1       string
	s2       string
	expected float64
	delta    float64
}

func createSimilarityTestCases() []similarityTestCase {
	return []similarityTestCase{
		{"Identical strings", "hello", "hello", 1.0, 0.0},
		{"Completely different strings", "hello", "world", 0.2, 0.1},
		{"Similar strings", "hello", "hallo", 0.8, 0.1},
		{"Empty strings", "", "", 1.0, 0.0},
		{"One empty string", "hello", "", 0.0, 0.0},
		{"Substring", "hello world", "hello", 0.45, 0.1},
		{"Misheard command", "happyer", "happier", 0.857, 0.01},
	}
}

func BenchmarkNormalizer_NormalizeUtterance(b *testing.B) {
	normalizer := NewNormalizer()
	utterance := "Hey Muze, could you play something a little more acoustic please?"

	b.ResetTimer()
	for range b.N {
		normalizer.NormalizeUtterance(utterance)
	}
}

func BenchmarkNormalizer_CalculateSimilarity(b *testing.B) {
	normalizer := NewNormalizer()
	s1 := "more dancey"
	s2 := "more dance"

	b.ResetTimer()
	for range b.N {
		normalizer.CalculateSimilarity(s1, s2)
	}
}

// Helper function for floating point comparison.
func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
