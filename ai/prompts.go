package ai

import "strings"

// Templates use {placeholder} tokens filled by literal substring replacement,
// never a templating engine: the JSON examples below contain braces that must
// survive untouched.

const researchPrompt = `You are a B2B sales researcher. Analyze the company below and produce a research profile for a personalized sales pitch.

Company URL: {company_url}
Company name: {company_name}
Additional context: {additional_context}

Scraped website data:
{scraped_data}

Respond with ONLY a JSON object in exactly this shape:
{
  "company_name": "official company name",
  "industry": "primary industry",
  "company_size": "estimated size bracket",
  "key_products": ["product or service", "..."],
  "target_market": "who they sell to",
  "pain_points": ["likely operational pain point", "..."],
  "recent_focus": "current strategic focus if evident",
  "tone": "formal|casual|technical",
  "personalization_hooks": ["specific detail worth referencing", "..."]
}

Do not include any text outside the JSON object.`

const scriptPrompt = `You are a sales copywriter. Write a short spoken video script pitching {sender_name}'s product to the company profiled below.

Our product: {our_product}
Research profile:
{research_profile}

Requirements:
- 30 to 45 seconds when spoken (roughly 80 to 120 words)
- conversational, confident, no jargon
- open with a hook specific to the company
- one concrete value proposition tied to their pain points
- end with a soft call to action
- plain narration only: no stage directions, no camera notes, no emoji

Respond in exactly this format:
SCRIPT:
<the narration>
WORD_COUNT: <number>`

func fill(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
