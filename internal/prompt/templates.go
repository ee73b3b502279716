package prompt

// LLM prompt templates. Data only, no logic.

// preamble demands JSON-only output. Every task prompt starts with it.
const preamble = `You are a YouTube content analyst. Respond with valid JSON only: no markdown, no code fences, no prose before or after the JSON object.`

// retryInstruction is appended when a previous response failed schema validation.
// Args: validation failure reason.
const retryInstruction = `

Your previous response was rejected: %s
Return the corrected JSON object only. Fix exactly what was rejected and keep everything else.`

// contextBlock carries the video metadata ahead of the task instruction.
// Args: title, channel, clock duration, views, likes, comments, transcript.
const contextBlock = `

Video: %s
Channel: %s
Duration: %s
Views: %s | Likes: %s | Comments: %s

Transcript:
%s`

const structuralBeatsInstruction = `Break the video into its structural beats.

Respond with this exact shape:
{
  "beats": [
    {"position": 1, "label": "Hook", "description": "what this beat does for the viewer"},
    {"position": 2, "label": "Setup", "description": "..."}
  ],
  "pacing": "one sentence on overall pacing"
}

Rules:
- beats must contain EXACTLY 6 items, positions 1 through 6 in order
- label: short name for the beat (Hook, Setup, Escalation, Payoff, ...)
- description: one or two sentences, specific to this video, not generic
- Base every beat on the transcript, do not invent content`

const emotionalArcInstruction = `Describe the emotional journey of the video.

Respond with this exact shape:
{
  "arc": "one paragraph tracing the arc, ensure the narrative arc Setup -> Conflict -> Resolution",
  "pillars": [
    {"emotion": "curiosity", "trigger": "the moment or technique that creates it"}
  ],
  "tone": "dominant tone in a few words"
}

Rules:
- pillars must contain at least one entry; list every distinct emotional pillar you find
- trigger must point at a concrete moment from the transcript`

const monetizationInstruction = `Estimate the monetization profile of this video.

Respond with this exact shape:
{
  "category": "content category used for CPM",
  "cpm_usd": 4.5,
  "revenue": {"min": 120, "max": 480},
  "strategies": ["specific revenue strategies that fit this content"]
}

Rules:
- Calculate revenue from view count x category CPM (per 1000 views); use the view
  count from the context block, and a realistic CPM for the category
- revenue.min and revenue.max are USD numbers with min <= max and min >= 0
- If view count is unknown, estimate conservatively and say so in strategies`

const titlePatternInstruction = `Score how well the title follows proven title patterns.

Respond with this exact shape:
{
  "score": 85,
  "pattern": "name of the dominant pattern (curiosity gap, listicle, how-to, ...)",
  "suggestions": ["up to three concrete rewrite suggestions"]
}

Rules:
- score is an INTEGER from 0 to 100, no decimals
- Judge the actual title from the context block against the transcript content`

const visualAssetsInstruction = `Analyze the thumbnail and visual packaging implied by the metadata.

Respond with this exact shape:
{
  "elements": ["visual element and what it signals"],
  "color_scheme": "short description",
  "improvement": "single highest-impact improvement"
}

Rules:
- elements must contain at least one entry
- Reason from the title, channel and content; note when you are inferring`

const highlightsInstruction = `Pick the most clippable timestamped highlights.

Respond with this exact shape:
{
  "highlights": [
    {"timestamp": "02:15", "title": "short label", "reason": "why this moment retains or hooks"}
  ]
}

Rules:
- at least one highlight, at most eight
- timestamp is MM:SS (or H:MM:SS) within the video duration
- Only moments actually present in the transcript`

const narrativeInstruction = `Write a long-form narrative analysis of the video.

Respond with this exact shape:
{
  "narrative": "a markdown essay (400-800 words) analyzing how the video tells its story",
  "chapters": ["optional chapter titles"]
}

Rules:
- narrative is markdown text, headings allowed inside the string
- Cover structure, delivery and what the creator should repeat or drop`

const overviewInstruction = `Produce the combined overview of every aspect of this video.

Respond with this exact shape:
{
  "summary": "3-5 sentence summary of the video and its performance levers",
  "strengths": ["specific strength"],
  "weaknesses": ["specific weakness"],
  "verdict": "one-sentence overall verdict"
}

Rules:
- summary and verdict are required and must be non-empty
- Be specific to this video; no boilerplate advice`
