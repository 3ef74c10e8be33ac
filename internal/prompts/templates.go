package prompts

// DefaultTemplates returns the global prompt set.
func DefaultTemplates() Templates {
	return Templates{
		KindArticleSummary:         articleSummaryTemplate,
		KindImpactRating:           impactRatingTemplate,
		KindCategoryClassification: categoryClassificationTemplate,
		KindClusterAnalysis:        clusterAnalysisTemplate,
		KindBriefSynthesis:         briefSynthesisTemplate,
		KindTranscriptionSummary:   transcriptionSummaryTemplate,
	}
}

const articleSummaryTemplate = `Summarize the key points of this news article objectively in 2-4 sentences.
Identify the main topics covered.

Article:
{article_content}
`

const impactRatingTemplate = `Analyze the following news summary and estimate its overall impact. Consider factors like geographic scope (local vs global), number of people affected, severity, and potential long-term consequences.

Rate the impact on a scale of 1 to 10, where:
1-2: Minor, niche, or local interest.
3-4: Notable event for a specific region or community.
5-6: Significant event with broader regional or moderate international implications.
7-8: Major event with significant international importance or wide-reaching effects.
9-10: Critical global event with severe, widespread, or potentially historic implications.

Summary:
"{summary}"

Output ONLY the integer number representing your rating (1-10).
`

const categoryClassificationTemplate = `Analyze the following article title and content to classify it into appropriate categories.

Available categories:
{categories}

Article Title: "{title}"
Article Content: "{content}"

Analyze the content and return ONLY a JSON array of relevant categories. For example:
["news", "nodejs"] or ["tutorial", "typescript"] or ["research"]

Choose 1-3 most relevant categories. Return only the JSON array, no other text.
`

const clusterAnalysisTemplate = `These are summaries of potentially related news articles from a '{feed_profile}' context:

{cluster_summaries_text}

What is the core event or topic discussed? Summarize the key developments and significance in 3-5 sentences based *only* on the provided text. If the articles seem unrelated, state that clearly.
`

const briefSynthesisTemplate = `You are an AI assistant writing a Presidential-style daily intelligence briefing using Markdown, specifically for the '{feed_profile}' category.
Synthesize the following analyzed news clusters into a coherent, high-level executive summary.
Start with the 2-3 most critical overarching themes globally or within this category based *only* on these inputs.
Then, provide concise bullet points summarizing key developments within the most significant clusters (roughly 3-5 clusters).
Maintain an objective, analytical tone relevant to the '{feed_profile}' context. Avoid speculation.

Analyzed News Clusters (Most significant first):
{cluster_analyses_text}
`

// SimpleBriefTemplate drives the clustering-free briefing path.
const SimpleBriefTemplate = `Create a concise briefing for the '{feed_profile}' profile based on these recent articles:

{articles_text}

Format as a professional briefing with:
1. Executive Summary (2-3 key themes)
2. Key Developments (bullet points)
3. Analysis and Implications

Use Markdown formatting.`

const transcriptionSummaryTemplate = `Summarize this video transcript in 3-5 sentences. Name the main topics, the claims the speaker makes and any tools or products discussed. Ignore sponsor reads and calls to subscribe.

Video title: "{title}"

Transcript:
{transcript}
`
