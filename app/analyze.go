package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/arensoandre/expert-cof/app/config"
	"github.com/arensoandre/expert-cof/app/models"
)

const (
	// The prompt embeds at most this much extracted text to stay inside
	// free-tier token-per-minute limits.
	promptTextLimit = 50000

	modelAttemptTimeout = 90 * time.Second
)

// Analyzer runs the COF risk analysis against an ordered list of models,
// falling through to the next one on any failure and to a degraded result
// when every attempt fails.
type Analyzer struct {
	client ModelClient
	models []string
}

func NewAnalyzer(client ModelClient, cfg config.GeminiConfig) *Analyzer {
	return &Analyzer{
		client: client,
		models: []string{cfg.PrimaryModel, cfg.FallbackModel},
	}
}

// Analyze returns a well-formed result in every case. degraded reports that
// no model produced a usable analysis and the payload is the labeled mock.
func (a *Analyzer) Analyze(ctx context.Context, text, filename string) (result *models.AnalysisResult, degraded bool) {
	prompt := buildPrompt(text)

	for _, model := range a.models {
		res, err := a.tryModel(ctx, model, prompt)
		if err != nil {
			log.Printf("AI analysis failed with %s: %v", model, err)
			continue
		}
		res.Filename = filename
		res.UploadDate = time.Now().Format(time.RFC3339)
		return res, false
	}

	return degradedResult(filename), true
}

func (a *Analyzer) tryModel(ctx context.Context, model, prompt string) (*models.AnalysisResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, modelAttemptTimeout)
	defer cancel()

	raw, err := a.client.Generate(attemptCtx, model, prompt)
	if err != nil {
		return nil, err
	}
	return parseAnalysis(raw)
}

func parseAnalysis(raw string) (*models.AnalysisResult, error) {
	cleaned := stripCodeFences(raw)

	var res models.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	if res.Summary == "" && len(res.Risks) == 0 {
		return nil, errors.New("model returned an empty analysis")
	}
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	return &res, nil
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func buildPrompt(text string) string {
	if len(text) > promptTextLimit {
		text = text[:promptTextLimit]
	}
	var b strings.Builder
	b.WriteString(cofPrompt)
	b.WriteString(text)
	return b.String()
}

const cofPrompt = `Você é um advogado especialista em franchising brasileiro (Lei 13.966/2019) e analista financeiro sênior.
Sua tarefa é analisar a Circular de Oferta de Franquia (COF) fornecida e extrair informações críticas com alta precisão.

OBJETIVO: Identificar riscos jurídicos, obrigações financeiras ocultas e avaliar a viabilidade do negócio.

EXTRAÇÃO DE DADOS (JSON ESTRITO):
1. **Identificação**:
   - Nome da Franquia (Razão Social e Nome Fantasia).
   - CNPJ da Franqueadora (Formato XX.XXX.XXX/XXXX-XX). Se houver múltiplos, liste o principal.

2. **Análise Financeira (Seja preciso com valores e moedas)**:
   - Investimento Inicial Total: Valor mínimo e máximo estimado (R$). Inclua taxa de franquia + capital de giro + instalação.
   - Taxa de Franquia: Valor cobrado na assinatura (R$).
   - Royalties: Base de cálculo (ex: % sobre Faturamento Bruto) ou valor fixo mensal.
   - Fundo de Propaganda: Base de cálculo (ex: % sobre Faturamento Bruto) ou valor fixo.
   - Payback (Retorno): Prazo estimado em meses (ex: "18 a 24 meses").
   - Rentabilidade/Lucratividade: % média mensal ou valor líquido estimado.

3. **Análise de Riscos (Crucial)**:
   - Classifique os riscos em: "Alto" (Cláusulas abusivas, multas desproporcionais, insegurança jurídica), "Médio" (Restrições operacionais rígidas) ou "Baixo" (Padrão de mercado).
   - Para cada risco, forneça um título curto e uma descrição explicativa baseada na lei ou boas práticas.

4. **Conformidade e Ausências**:
   - Verifique se a COF contém: Balanços dos últimos 2 anos, Pendências Judiciais, Relação de Franqueados (ativos e desligados), Marca registrada no INPI.
   - Liste explicitamente o que estiver faltando ou incompleto.

FORMATO DE SAÍDA (JSON):
{
    "franchise_name": "Nome Fantasia (Razão Social)",
    "cnpj": "00.000.000/0000-00",
    "score": <inteiro 0-100 baseada na segurança jurídica e atratividade financeira>,
    "summary": "Resumo executivo profissional começando com 'Análise da COF da franquia [NOME]...'. Destaque os pontos fortes e os alertas críticos em 2-3 parágrafos.",
    "financials": {
        "initial_investment": "R$ X a R$ Y",
        "franchise_fee": "R$ X",
        "royalties": "X% sobre Faturamento Bruto",
        "advertising_fund": "X% sobre Faturamento Bruto",
        "payback_period": "X a Y meses",
        "profitability": "X% a Y% a.m."
    },
    "risks": [
        {
            "severity": "high|medium|low",
            "title": "Título do Risco",
            "description": "Explicação detalhada do porquê isso é um risco para o franqueado."
        }
    ],
    "missingClauses": [
        "Item obrigatório não encontrado 1",
        "Item obrigatório não encontrado 2"
    ],
    "recommendations": [
        "Ação prática recomendada 1 (ex: Negociar cláusula X)",
        "Ação prática recomendada 2"
    ]
}

Texto da COF para análise (Primeiros 50k caracteres):
`

// degradedResult is the labeled fallback payload: the request still gets a
// well-formed 200 body, explicitly flagged as illustrative data.
func degradedResult(filename string) *models.AnalysisResult {
	return &models.AnalysisResult{
		Filename:      filename,
		UploadDate:    time.Now().Format(time.RFC3339),
		Score:         0,
		Summary:       "ERRO NA ANÁLISE AUTOMÁTICA (FALLBACK). Não foi possível conectar com a Inteligência Artificial neste momento. Os dados abaixo são apenas um exemplo ilustrativo e NÃO correspondem ao documento enviado. Por favor, verifique a chave de API ou tente novamente mais tarde.",
		FranchiseName: "ERRO - DADOS SIMULADOS",
		CNPJ:          "00.000.000/0000-00",
		Risks: []models.Risk{
			{
				Severity:    "high",
				Title:       "Multa Rescisória",
				Description: "A multa por rescisão antecipada é de 50% do valor total do contrato restante, o que é considerado abusivo pela jurisprudência recente.",
			},
			{
				Severity:    "medium",
				Title:       "Território Não Exclusivo",
				Description: "A franqueadora se reserva o direito de abrir unidades próprias ou licenciar outras franquias na mesma zona de influência primária.",
			},
			{
				Severity:    "low",
				Title:       "Taxa de Renovação",
				Description: "A taxa de renovação não está fixada em valor, sendo definida a critério da franqueadora no momento da renovação.",
			},
		},
		MissingClauses: []string{
			"Balanços financeiros dos últimos 2 exercícios",
			"Situação da marca no INPI (apenas protocolo informado)",
			"Perfil do franqueado ideal detalhado",
		},
		Recommendations: []string{
			"Negociar a redução da multa rescisória para um patamar de 20%.",
			"Solicitar cláusula de preferência para novas unidades no território.",
			"Exigir a apresentação dos balanços auditados antes da assinatura.",
		},
	}
}
