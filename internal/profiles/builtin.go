package profiles

import "meridian/internal/core"

func off() *bool {
	v := false
	return &v
}

const ptBR = " Responda em português brasileiro."

func builtinProfiles() []Profile {
	return []Profile{
		{
			Name:     core.ProfileTechnology,
			Priority: 1,
			Feeds: []Feed{
				{URL: "https://nodejs.org/en/feed/blog.xml", Name: "NodeJs Blog", Category: "technical", Description: "Official Node.js project blog"},
				{URL: "https://techcrunch.com/feed/", Name: "TechCrunch", Category: "startup", Description: "Technology startup news and venture capital"},
				{URL: "https://www.tabnews.com.br/recentes/rss", Name: "TabNews", Category: "technical", Description: "Brazilian technology community"},
				{URL: "https://leaddev.com/feed", Name: "LeadDev", Category: "technical", Description: "Engineering leadership articles"},
				{URL: "https://www.theverge.com/rss/index.xml", Name: "The Verge", Category: "consumer-tech", Enabled: off()},
				{URL: "https://arstechnica.com/feed/", Name: "Ars Technica", Category: "technical", Enabled: off()},
				{URL: "https://krebsonsecurity.com/feed/", Name: "Krebs on Security", Category: "cybersecurity", Enabled: off()},
				{URL: "https://feeds.feedburner.com/TheHackersNews", Name: "The Hacker News", Category: "cybersecurity"},
				{URL: "https://www.bleepingcomputer.com/feed/", Name: "BleepingComputer", Category: "cybersecurity", Enabled: off()},
				{URL: "https://www.scmp.com/rss/36/feed", Name: "SCMP Tech", Category: "asia-tech"},
				{URL: "https://www.scmp.com/rss/320663/feed", Name: "SCMP China Tech", Category: "china-tech"},
				{URL: "https://www.scmp.com/rss/318220/feed", Name: "SCMP Startups", Category: "startup"},
				{URL: "https://www.scmp.com/rss/318221/feed", Name: "SCMP Apps & Gaming", Category: "gaming"},
				{URL: "https://www.scmp.com/rss/318224/feed", Name: "SCMP Science & Research", Category: "science"},
				{URL: "https://www.wired.com/feed/rss", Name: "WIRED", Category: "tech-culture", Enabled: off()},
				{URL: "https://raw.githubusercontent.com/theworkitem/feeds/master/xml/theworkitem-itunes.xml", Name: "The Work Item Podcast", Category: "tech-culture"},
			},
		},
		{
			Name:     core.ProfileBrasil,
			Priority: 2,
			Feeds: []Feed{
				{URL: "https://g1.globo.com/rss/g1/", Name: "G1", Category: "news", Description: "Portal de notícias da Globo"},
				{URL: "https://agenciabrasil.ebc.com.br/rss/ultimasnoticias/feed.xml", Name: "Agência Brasil", Category: "news", Description: "Agência pública de notícias"},
				{URL: "https://feeds.folha.uol.com.br/emcimadahora/rss091.xml", Name: "Folha de S.Paulo", Category: "news"},
			},
			Prompts: PromptOverrides{
				ArticleSummary: "Resuma os pontos principais desta notícia objetivamente em 2 a 4 frases. " +
					"Identifique os principais tópicos abordados.\n\nArtigo:\n{article_content}." + ptBR,
				ClusterAnalysis: teclasClusterAnalysis,
				BriefSynthesis:  teclasBriefSynthesis,
			},
		},
		{
			Name:     core.ProfileTeclas,
			Priority: 2,
			Feeds: []Feed{
				{URL: "https://www.tecnologiaeclasse.com.br/feed", Name: "Teclas", Category: "blog", Description: "Canal e newsletter sobre tecnologia e luta de classes"},
				{URL: "https://teclas.soberana.tv/rss.xml", Name: "Roteiros Tecnologia e Classe", Category: "news", Description: "Feed dos roteiros de vídeos do canal Tecnologia e Classe"},
			},
			Prompts: PromptOverrides{
				ArticleSummary: "Resuma os pontos principais desta notícia objetivamente em 2 a 4 frases. " +
					"Identifique os principais tópicos abordados.\n\nArtigo:\n{article_content}." + ptBR,
				ImpactRating:    teclasImpactRating,
				ClusterAnalysis: teclasClusterAnalysis,
				BriefSynthesis:  teclasBriefSynthesis,
			},
		},
	}
}

const teclasImpactRating = `Analise o resumo da notícia a seguir e estime seu impacto no contexto brasileiro. Considere fatores como noticiabilidade, relevância para o público brasileiro, abrangência geográfica (local, regional ou nacional), número de pessoas afetadas, gravidade e potenciais consequências a longo prazo para o Brasil. Seja extremamente crítico e conservador ao atribuir pontuações.

Avalie o impacto em uma escala de 1 a 10:

1-2: Significância mínima. Interesse de nicho ou notícias locais sem relevância mais ampla.
3-4: Notável regionalmente. Acontecimentos de relevância em um estado ou região específica.
5-6: Significativo nacionalmente. Afeta múltiplos estados ou tem relevância nacional moderada.
7-8: Altamente significativo no Brasil. Grande relevância nacional ou implicações de longo alcance.
9-10: Extraordinário e histórico no contexto brasileiro.

Pontuações de 9 a 10 devem ser extremamente raras.

Resumo:
"{summary}"

Digite SOMENTE o número inteiro que representa sua classificação (1 a 10).`

const teclasClusterAnalysis = `Estes são resumos de artigos de notícias potencialmente relacionados de um contexto '{feed_profile}':

{cluster_summaries_text}

Qual é o evento ou tópico principal discutido? Resuma os principais desenvolvimentos e a importância em 3 a 5 frases, com base *apenas* no texto fornecido. Se os artigos parecerem não relacionados (unrelated), informe isso claramente.` + ptBR

const teclasBriefSynthesis = `Você é um assistente de IA escrevendo um briefing diário de inteligência no estilo presidencial usando Markdown, especificamente para a categoria '{feed_profile}'.
Sintetize os seguintes grupos de notícias analisados em um resumo executivo coerente e de alto nível.

Comece com os 4 ou 5 temas abrangentes mais críticos em relação ao Brasil ou dentro desta categoria, com base *apenas* nestas informações.

Em seguida, forneça tópicos concisos resumindo os principais desenvolvimentos dentro dos grupos mais significativos.
Mantenha um tom objetivo e analítico relevante para o contexto '{feed_profile}'. Evite especulações.

Inclua as fontes de cada declaração usando links Markdown para o título do artigo.

Grupos de Notícias Analisados (Mais significativos primeiro):
{cluster_analyses_text}`
