package news

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	constants "news-digest-api/api/constants"
	models "news-digest-api/api/models"
)

const contentRules = `- If the news is related to China, ONLY cite Chinese media sources with domains ending in .cn
- If the news is not related to China, you can cite any media source worldwide.
- DO NOT include any news that mentions Chinese leadership by name.
- DO NOT include any politically sensitive news related to China or Taiwan.
- ONLY include positive, uplifting or neutral news stories. DO NOT include disasters, accidents, crimes, conflicts or other distressing events.
- ONLY include news published on {{.Today}} or {{.Yesterday}}. DO NOT include older articles.
- REMOVE all citation markers and footnotes such as [1] or [2, 6] from English sentences.
- {{.LevelInstruction}}`

var translatedTemplate = template.Must(template.New("translated").Parse(`You are a news aggregator API. You MUST return valid JSON data only.

Find the {{.Count}} latest news articles from {{.Source}}.

For each article:
1. Break down the article into 3-5 key sentences.
2. For each sentence, provide the English sentence and a translation in {{.Language}}.

CONTENT REQUIREMENTS:
` + contentRules + `

If you cannot find news, return an empty array: []

REQUIRED JSON FORMAT:
[
  {
    "title": "Article title",
    "titleTranslated": "Translated title",
    "region": "{{.Region}}",
    "sentences": [
      {"english": "English sentence", "translated": "Translated sentence"}
    ],
    "source": "Source name",
    "sourceUrl": "URL to the article",
    "publishedDate": "Publication date and time"
  }
]

RETURN ONLY THE JSON ARRAY ABOVE. NO OTHER TEXT.`))

var englishTemplate = template.Must(template.New("english").Parse(`Find the {{.Count}} latest English news articles from {{.Source}} published on {{.Today}} or {{.Yesterday}}.

For each article, break it down into 3-5 key sentences.

IMPORTANT REQUIREMENTS:
` + contentRules + `

Format your response as a JSON array with this structure:
[
  {
    "title": "Article title",
    "sentences": ["Key sentence"],
    "source": "Source name",
    "sourceUrl": "URL to the article",
    "publishedDate": "Publication date and time"
  }
]

Return ONLY the JSON array, with no additional text, markdown, or formatting.`))

type promptData struct {
	Count            int
	Region           string
	Source           string
	Language         string
	Today            string
	Yesterday        string
	LevelInstruction string
}

func newPromptData(region, language string, level models.Level, asOf time.Time) promptData {
	source := region
	if region == constants.InternationalRegionCode {
		source = "international news"
	}
	return promptData{
		Count:            constants.ArticlesPerRegion,
		Region:           region,
		Source:           source,
		Language:         language,
		Today:            asOf.Format(models.DateLayout),
		Yesterday:        asOf.AddDate(0, 0, -1).Format(models.DateLayout),
		LevelInstruction: levelInstruction(level),
	}
}

func levelInstruction(level models.Level) string {
	if level == models.LevelAdvanced {
		return "As this is for advanced English learners, feel free to use complex and varied vocabulary."
	}
	return "As this is for intermediate English learners, use vocabulary within the range of Wordly Wise 3000. Avoid complex or uncommon words."
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}

// TranslatedPrompt asks for articles from region with every sentence translated into language.
func TranslatedPrompt(region, language string, level models.Level, asOf time.Time) (string, error) {
	return render(translatedTemplate, newPromptData(region, language, level, asOf))
}

// EnglishPrompt asks for English-only articles from region.
func EnglishPrompt(region string, level models.Level, asOf time.Time) (string, error) {
	return render(englishTemplate, newPromptData(region, "", level, asOf))
}
