package ai

// CorrectiveSuffix is appended to a prompt when the first response violated
// the expected structure. One corrective retry only; after that the schema
// violation is surfaced to the caller.
const CorrectiveSuffix = `

# Correction
Your previous response did not match the required JSON structure. Respond
again with ONLY a valid JSON object that matches the requested schema
exactly. Include every required field. Do not add commentary, markdown
fences, or any text outside the JSON object.`

const SpeakerPrompt = `
# Task Context
You are a transcription analyst attributing utterances in an interview
transcript to speakers.

# Background Data
Transcript excerpt:
%s

# Detailed Task Description & Rules
- For each numbered paragraph, determine who is speaking.
- Use explicit cues first: "Name:" prefixes, direct address, turn-taking.
- If the speaker is asking questions and steering the conversation, label
  them "Interviewer". If they are answering from personal experience, label
  them "Participant".
- If a real name is evident, prefer the name over a role label.
- If the speaker genuinely cannot be determined, use an empty string. Do
  not guess names that are not in the text.

# Output Formatting
Return a JSON object with this structure:
{
  "speakers": [
    {"paragraph": <number>, "speaker": "<name, role label, or empty>", "confidence": <0.0-1.0>}
  ]
}
`

const CodingPrompt = `
# Task Context
You are a qualitative researcher performing open coding on an interview
transcript, in the Grounded Theory tradition. Codes are short thematic
labels grounded in what the participant actually said.

# Background Data
Interview quotes (each with an index):
%s

Existing codes from earlier interviews (reuse when they fit, with their
exact names):
%s

# Detailed Task Description & Rules
- Assign one or more codes to each quote that carries thematic content.
  Greeting, filler, and purely procedural quotes may receive no codes.
- Prefer reusing an existing code over inventing a near-synonym.
- Code names are short noun phrases in lower case (e.g. "trust in
  automation", "validation burden").
- Every code must include a one-sentence description of the theme.
- Provide a confidence score between 0.0 and 1.0 for every assignment.
- If a quote directly responds to, clarifies, or supports ANOTHER quote,
  you may add one connection with the label "responds_to", "clarifies" or
  "supports". A quote must never connect to itself.

# Output Formatting
Return a JSON object with this structure:
{
  "codings": [
    {
      "quote_index": <index of the quote>,
      "codes": [
        {"name": "<code name>", "description": "<one sentence>", "confidence": <0.0-1.0>}
      ],
      "connection": {"target_index": <index>, "label": "<responds_to|clarifies|supports>", "confidence": <0.0-1.0>}
    }
  ]
}
The "connection" field is optional and may be omitted.
`

const ExtractPrompt = `
# Task Context
You are extracting structured entity and relationship information from
coded interview quotes. Capture everything explicitly present in the text,
without inventing anything.

# Background Data
- Entity_types: [%s]
- Interview quotes (each with an index):
%s

# Detailed Task Description & Rules

## Entity Extraction
1. Identify all entities of the specified types [%s].
2. For each entity, extract:
   - entity_name: the name of the entity, written in ALL CAPITAL LETTERS.
   - entity_type: one of the provided types [%s].
   - entity_description: a comprehensive description of the entity's
     attributes, roles and activities as stated in the quotes.
   - quote_indices: the indices of the quotes that mention the entity.
   - confidence: a score between 0.0 and 1.0.

## Relationship Extraction
1. From the identified entities, determine all clear relationships between
   pairs of entities.
2. For each relationship, extract:
   - source_entity: name of the source entity, exactly as in step 1.
   - target_entity: name of the target entity, exactly as in step 1.
   - label: a short verb phrase naming the relation (e.g. "works_at",
     "uses", "distrusts").
   - quote_index: the index of the single quote that best supports it.
   - confidence: a score between 0.0 and 1.0.
3. Only relate entities that appear in your entity list. If the quotes
   support no relationships, return an empty array.

# Output Formatting
Return a JSON object with this structure:
{
  "entities": [
    {"entity_name": "...", "entity_type": "...", "entity_description": "...", "quote_indices": [0], "confidence": 0.9}
  ],
  "relationships": [
    {"source_entity": "...", "target_entity": "...", "label": "...", "quote_index": 0, "confidence": 0.8}
  ]
}
`
