package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// maxReviewBodyChars caps how much of a review body goes into the prompt.
const maxReviewBodyChars = 1000

// maxJobDescChars caps how much of a job description goes into the prompt.
const maxJobDescChars = 1200

const extractSystemPrompt = `You are an expert at analyzing iOS app store reviews to identify user complaints.

Given a batch of reviews, extract specific complaints from negative/mixed reviews.
For each complaint found, return structured JSON.

Complaint categories (use EXACTLY these strings):
- "Bugs/Crashes" — app crashes, freezes, specific bugs
- "Performance" — slow loading, lag, battery drain, memory issues
- "UI/UX" — confusing navigation, bad design, poor usability
- "Pricing/Subscriptions" — too expensive, misleading pricing, paywall issues
- "Missing Features" — features removed or requested by users
- "Customer Support" — unresponsive support, bad service experience
- "Privacy/Security" — data collection concerns, privacy issues, security flaws
- "Content Quality" — bad content, inaccurate information, low quality

Severity scale:
- 1: Minor annoyance
- 2: Noticeable issue
- 3: Significant problem affecting usage
- 4: Major issue causing app to be barely usable
- 5: App-breaking issue or serious harm

Return ONLY a valid JSON array. No markdown, no explanation.`

const opportunitySystemPrompt = `You are a product strategist analyzing user complaints to identify improvement opportunities.

Given a list of complaints for a single iOS app, group them into 3-5 mutually exclusive, collectively exhaustive (MECE) product opportunities.

Rules:
- Between 3 and 5 opportunities total (fewer is better if complaints cluster naturally)
- Each opportunity must be meaningfully distinct — no overlap
- Together they should cover all significant complaints
- Title: short, action-oriented (e.g. "Fix Stability & Crashes", "Simplify Subscription Flow")
- Description: 1-2 sentences explaining the pattern and user impact
- complaint_indices: array of 0-based indices of complaints belonging to this opportunity

Return ONLY a valid JSON array. No markdown, no explanation.
Example: [{"title":"...","description":"...","complaint_indices":[0,2,5]}]`

const outcomeSystemPrompt = `You are a senior product leader analyzing entry-level PM job descriptions to identify the core outcomes this role must drive.

Given one or more PM job descriptions from the SAME company, extract 3-5 mutually exclusive, collectively exhaustive (MECE) outcomes that an Associate PM / APM at this company must deliver.

Rules:
- 3 to 5 outcomes total (fewer if descriptions clearly cluster)
- Each outcome is a business or product result, not a task or responsibility
- Outcomes should be specific to this company's domain, not generic PM boilerplate
- Title: concise result-oriented phrase (e.g. "Drive 20% faster checkout conversion", "Own the developer API adoption funnel")
- Description: 1-2 sentences on why this matters and what success looks like
- job_indices: 0-based indices of which job descriptions this outcome appears in

Return ONLY valid JSON array. No markdown.
Example: [{"title":"...","description":"...","job_indices":[0,1]}]`

// reviewInput is the compact textual form of one review sent for
// extraction, keyed by its batch-local index.
type reviewInput struct {
	Index  int
	Rating int
	Title  string
	Body   string
}

// extractedComplaint is one validated item of extraction output. The index
// references the request batch, not any global identifier.
type extractedComplaint struct {
	ReviewIndex int
	Text        string
	Category    string
	Severity    int
}

type extractedCluster struct {
	Title       string
	Description string
	Indices     []int
}

// LLMClient wraps the shared Anthropic client. Constructed once at startup
// and injected everywhere an LLM call is made.
type LLMClient struct {
	client anthropic.Client
	model  string
}

func NewLLMClient(cfg Config) *LLMClient {
	return &LLMClient{
		client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:  cfg.LLMModel,
	}
}

func (c *LLMClient) complete(systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	message, err := c.client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm response size=%d tokens_in=%d tokens_out=%d", len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

// ExtractComplaints sends one batch of reviews and returns the validated
// complaint items. A response that cannot be parsed yields an empty result
// and nil error: one bad response degrades that batch's yield to zero
// instead of aborting the run. Exactly one outbound call; retry belongs to
// the caller.
func (c *LLMClient) ExtractComplaints(reviews []reviewInput) ([]extractedComplaint, error) {
	var sb strings.Builder
	for i, r := range reviews {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		title := r.Title
		if title == "" {
			title = "(no title)"
		}
		body := truncateText(r.Body, maxReviewBodyChars)
		sb.WriteString(fmt.Sprintf("[%d] Rating: %d/5\nTitle: %s\nBody: %s", r.Index, r.Rating, title, body))
	}
	userPrompt := fmt.Sprintf(
		"Extract complaints from these %d app reviews:\n\n%s\n\nReturn JSON array: [{review_index, complaint_text, complaint_category, severity}]",
		len(reviews), sb.String(),
	)

	responseText, err := c.complete(extractSystemPrompt, userPrompt, 4096)
	if err != nil {
		return nil, err
	}

	items, err := parseComplaintResponse(responseText)
	if err != nil {
		log.Printf("llm extract parse failed: %v (response: %s)", err, truncateForLog(responseText, 512))
		return nil, nil
	}
	return items, nil
}

// ClusterOpportunities groups one app's complaints into product
// opportunities. Indices in the result reference the complaints slice.
func (c *LLMClient) ClusterOpportunities(appName string, complaints []Complaint) ([]extractedCluster, error) {
	var sb strings.Builder
	for i, cm := range complaints {
		sb.WriteString(fmt.Sprintf("[%d] [%s] (severity %d) %s\n", i, cm.Category, cm.Severity, cm.Text))
	}
	userPrompt := fmt.Sprintf(
		"App: %s\n\nComplaints (%d total):\n%s\nGroup these into 3-5 MECE product opportunities. Return JSON array.",
		appName, len(complaints), sb.String(),
	)

	responseText, err := c.complete(opportunitySystemPrompt, userPrompt, 2048)
	if err != nil {
		return nil, err
	}

	items, err := parseClusterResponse(responseText, "complaint_indices", []string{"opportunities", "results", "items"})
	if err != nil {
		log.Printf("llm opportunities parse failed app=%s: %v (response: %s)", appName, err, truncateForLog(responseText, 200))
		return nil, nil
	}
	return items, nil
}

// ClusterOutcomes synthesizes cross-job outcome themes for one company.
// Indices in the result reference the jobs slice.
func (c *LLMClient) ClusterOutcomes(companyName string, jobs []PMJob) ([]extractedCluster, error) {
	var sb strings.Builder
	for i, j := range jobs {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		desc := truncateText(j.Description, maxJobDescChars)
		sb.WriteString(fmt.Sprintf("[%d] Title: %s\n%s", i, j.Title, desc))
	}
	userPrompt := fmt.Sprintf(
		"Company: %s\n\nJob descriptions (%d):\n\n%s\n\nGenerate 3-5 MECE PM outcomes for this company. Return JSON array.",
		companyName, len(jobs), sb.String(),
	)

	responseText, err := c.complete(outcomeSystemPrompt, userPrompt, 1500)
	if err != nil {
		return nil, err
	}

	items, err := parseClusterResponse(responseText, "job_indices", []string{"outcomes", "results", "items"})
	if err != nil {
		log.Printf("llm outcomes parse failed company=%s: %v (response: %s)", companyName, err, truncateForLog(responseText, 200))
		return nil, nil
	}
	return items, nil
}

// --- Response parsing ---

// stripCodeFences removes leading/trailing markdown fences the model
// sometimes wraps around its JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeItemArray accepts either a bare JSON array or an object exposing
// the array under one of the given keys, tried in order. Anything else is
// an error: no guessing beyond the enumerated shapes.
func decodeItemArray(responseText string, wrapperKeys []string) ([]json.RawMessage, error) {
	text := stripCodeFences(responseText)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return nil, fmt.Errorf("response is neither array nor object: %w", err)
	}
	for _, key := range wrapperKeys {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("wrapper key %q is not an array: %w", key, err)
		}
		return items, nil
	}
	return nil, nil
}

// rawComplaintItem uses pointer fields so missing and wrongly-typed fields
// are distinguishable; items failing the shape check are dropped silently.
type rawComplaintItem struct {
	ReviewIndex *float64 `json:"review_index"`
	Text        *string  `json:"complaint_text"`
	Category    *string  `json:"complaint_category"`
	Severity    *float64 `json:"severity"`
}

func parseComplaintResponse(responseText string) ([]extractedComplaint, error) {
	items, err := decodeItemArray(responseText, []string{"complaints", "results", "items"})
	if err != nil {
		return nil, err
	}

	var out []extractedComplaint
	for _, raw := range items {
		var item rawComplaintItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.ReviewIndex == nil || item.Text == nil || item.Category == nil || item.Severity == nil {
			continue
		}
		out = append(out, extractedComplaint{
			ReviewIndex: int(*item.ReviewIndex),
			Text:        *item.Text,
			Category:    *item.Category,
			Severity:    int(*item.Severity),
		})
	}
	return out, nil
}

func parseClusterResponse(responseText, indicesKey string, wrapperKeys []string) ([]extractedCluster, error) {
	items, err := decodeItemArray(responseText, wrapperKeys)
	if err != nil {
		return nil, err
	}

	var out []extractedCluster
	for _, raw := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		var cluster extractedCluster
		if err := json.Unmarshal(fields["title"], &cluster.Title); err != nil {
			continue
		}
		if rawIdx, ok := fields[indicesKey]; !ok {
			continue
		} else if err := json.Unmarshal(rawIdx, &cluster.Indices); err != nil {
			continue
		}
		if desc, ok := fields["description"]; ok {
			_ = json.Unmarshal(desc, &cluster.Description)
		}
		out = append(out, cluster)
	}
	return out, nil
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("... [truncated, total_length=%d]", len(s))
}
