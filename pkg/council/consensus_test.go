package council

import (
	"reflect"
	"testing"

	"ai-deepsearch-be/pkg/store"
)

func completedResponse(text string) ModelResponse {
	return ModelResponse{Status: store.StatusCompleted, Text: text}
}

func TestDetectConsensusKeywords(t *testing.T) {
	tests := []struct {
		name      string
		responses []ModelResponse
		want      []string
	}{
		{
			name: "shared significant words across two answers",
			responses: []ModelResponse{
				completedResponse("Solar power is renewable energy"),
				completedResponse("Renewable solar energy provides power"),
			},
			want: []string{"energy", "power", "renewable", "solar"},
		},
		{
			name: "failed responses are excluded from the intersection",
			responses: []ModelResponse{
				completedResponse("Kubernetes orchestration scales containers"),
				{Status: store.StatusError, Text: "totally unrelated vocabulary"},
				completedResponse("Container orchestration with Kubernetes scales well"),
			},
			want: []string{"kubernetes", "orchestration", "scales"},
		},
		{
			name: "short words never count as agreement",
			responses: []ModelResponse{
				completedResponse("Go is fast"),
				completedResponse("Go is very fast"),
			},
			want: nil,
		},
		{
			name: "no overlap yields nothing",
			responses: []ModelResponse{
				completedResponse("apples oranges"),
				completedResponse("trains planes"),
			},
			want: nil,
		},
		{
			name: "case and punctuation are folded",
			responses: []ModelResponse{
				completedResponse("SOLAR-power; energy!"),
				completedResponse("solar... Power & Energy"),
			},
			want: []string{"energy", "power", "solar"},
		},
		{
			name: "single completed response keeps its own words",
			responses: []ModelResponse{
				completedResponse("Distributed systems require careful design"),
			},
			want: []string{"careful", "design", "distributed", "require", "systems"},
		},
		{
			name: "no completed responses",
			responses: []ModelResponse{
				{Status: store.StatusError, Text: "whatever happened here"},
			},
			want: nil,
		},
		{
			name:      "empty input",
			responses: nil,
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectConsensusKeywords(tt.responses)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectConsensusKeywords() = %v, want %v", got, tt.want)
			}
		})
	}
}
