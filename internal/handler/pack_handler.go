package handler

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
	"github.com/yourusername/quiznight-api/internal/service"
	"github.com/yourusername/quiznight-api/internal/websocket"
)

// PackHandler обрабатывает REST-запросы: пак вопросов, правила, логотип
// и выгрузки для ведущего
type PackHandler struct {
	packStore     repository.PackStore
	answerRepo    repository.AnswerRepository
	actionLogRepo repository.ActionLogRepository
	gameSession   *service.GameSession
	wsManager     *websocket.Manager

	rulesPath string
	logoPath  string
}

// NewPackHandler создает новый REST-обработчик
func NewPackHandler(
	packStore repository.PackStore,
	answerRepo repository.AnswerRepository,
	actionLogRepo repository.ActionLogRepository,
	gameSession *service.GameSession,
	wsManager *websocket.Manager,
	rulesPath string,
	logoPath string,
) *PackHandler {
	return &PackHandler{
		packStore:     packStore,
		answerRepo:    answerRepo,
		actionLogRepo: actionLogRepo,
		gameSession:   gameSession,
		wsManager:     wsManager,
		rulesPath:     rulesPath,
		logoPath:      logoPath,
	}
}

// GetPack возвращает текущий пак вопросов целиком
func (h *PackHandler) GetPack(c *gin.Context) {
	c.JSON(http.StatusOK, h.packStore.Current())
}

// UploadPack заменяет пак вопросов. Идущий раунд при этом не прерывается:
// опубликованный вопрос продолжает жить копией в истории сессии.
func (h *PackHandler) UploadPack(c *gin.Context) {
	var pack entity.Pack
	if err := c.ShouldBindJSON(&pack); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.packStore.Replace(&pack); err != nil {
		log.Printf("[PackHandler] Ошибка при замене пака: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.gameSession.Recorder().Record(entity.ActionPackUpdated, entity.JSONMap{
		"title":     pack.Meta.Title,
		"questions": len(pack.Questions),
	})

	if err := h.wsManager.BroadcastEvent(websocket.PACK_UPDATED, h.packStore.Current()); err != nil {
		log.Printf("[PackHandler] Ошибка при рассылке packUpdated: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Пак вопросов обновлен", "questions": len(pack.Questions)})
}

// GetRules возвращает текст правил игры
func (h *PackHandler) GetRules(c *gin.Context) {
	data, err := os.ReadFile(h.rulesPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"rules": ""})
			return
		}
		log.Printf("[PackHandler] Ошибка чтения правил: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать правила"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": string(data)})
}

// UpdateRules заменяет текст правил игры
func (h *PackHandler) UpdateRules(c *gin.Context) {
	var req struct {
		Rules string `json:"rules"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := os.MkdirAll(filepath.Dir(h.rulesPath), 0o755); err != nil {
		log.Printf("[PackHandler] Ошибка создания каталога правил: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить правила"})
		return
	}
	if err := os.WriteFile(h.rulesPath, []byte(req.Rules), 0o644); err != nil {
		log.Printf("[PackHandler] Ошибка записи правил: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить правила"})
		return
	}

	h.gameSession.Recorder().Record(entity.ActionRulesUpdated, entity.JSONMap{"length": len(req.Rules)})

	c.JSON(http.StatusOK, gin.H{"message": "Правила обновлены"})
}

// UploadLogo принимает логотип мероприятия (multipart, поле "logo")
func (h *PackHandler) UploadLogo(c *gin.Context) {
	file, err := c.FormFile("logo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл logo не найден в запросе"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".svg", ".webp":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Недопустимый формат логотипа: %s", ext)})
		return
	}

	if err := os.MkdirAll(filepath.Dir(h.logoPath), 0o755); err != nil {
		log.Printf("[PackHandler] Ошибка создания каталога логотипа: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить логотип"})
		return
	}
	if err := c.SaveUploadedFile(file, h.logoPath); err != nil {
		log.Printf("[PackHandler] Ошибка сохранения логотипа: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить логотип"})
		return
	}

	h.gameSession.Recorder().Record(entity.ActionLogoUpdated, entity.JSONMap{"filename": file.Filename})

	c.JSON(http.StatusOK, gin.H{"message": "Логотип обновлен"})
}

// GetLogo отдает текущий логотип
func (h *PackHandler) GetLogo(c *gin.Context) {
	if _, err := os.Stat(h.logoPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Логотип не загружен"})
		return
	}
	c.File(h.logoPath)
}

// DownloadResponses выгружает журнал ответов из БД (JSON, ?format=xlsx)
func (h *PackHandler) DownloadResponses(c *gin.Context) {
	answers, err := h.answerRepo.List()
	if err != nil {
		log.Printf("[PackHandler] Ошибка чтения журнала ответов: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать журнал ответов"})
		return
	}

	if c.Query("format") == "xlsx" {
		h.exportAnswersXLSX(c, answers)
		return
	}

	c.Header("Content-Disposition", attachmentName("responses", "json"))
	c.JSON(http.StatusOK, answers)
}

// DownloadLog выгружает журнал действий из БД
func (h *PackHandler) DownloadLog(c *gin.Context) {
	entries, err := h.actionLogRepo.List()
	if err != nil {
		log.Printf("[PackHandler] Ошибка чтения журнала действий: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать журнал действий"})
		return
	}

	c.Header("Content-Disposition", attachmentName("log", "json"))
	c.JSON(http.StatusOK, entries)
}

// DownloadRanking выгружает текущий рейтинг (JSON, ?format=xlsx)
func (h *PackHandler) DownloadRanking(c *gin.Context) {
	ranking := h.gameSession.Ranking()

	if c.Query("format") == "xlsx" {
		h.exportRankingXLSX(c, ranking)
		return
	}

	c.Header("Content-Disposition", attachmentName("ranking", "json"))
	c.JSON(http.StatusOK, ranking)
}

// exportRankingXLSX экспортирует рейтинг в Excel
func (h *PackHandler) exportRankingXLSX(c *gin.Context, ranking []entity.RankingEntry) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", attachmentName("ranking", "xlsx"))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Рейтинг"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[PackHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	if err := sw.SetRow("A1", []interface{}{"Место", "Команда", "Очки"}); err != nil {
		log.Printf("[PackHandler] Ошибка записи заголовков: %v", err)
	}

	for i, entry := range ranking {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{i + 1, sanitizeForExcel(entry.Team), entry.Points}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[PackHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[PackHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[PackHandler] Ошибка записи Excel в response: %v", err)
	}
}

// exportAnswersXLSX экспортирует журнал ответов в Excel
func (h *PackHandler) exportAnswersXLSX(c *gin.Context, answers []entity.Answer) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", attachmentName("responses", "xlsx"))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Ответы"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[PackHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	if err := sw.SetRow("A1", []interface{}{"Команда", "Раунд", "Ответ", "Время", "Очки"}); err != nil {
		log.Printf("[PackHandler] Ошибка записи заголовков: %v", err)
	}

	for i, a := range answers {
		cell := fmt.Sprintf("A%d", i+2)
		points := ""
		if a.Points != nil {
			points = fmt.Sprintf("%d", *a.Points)
		}
		row := []interface{}{
			sanitizeForExcel(a.Team),
			a.Round,
			sanitizeForExcel(strings.Join(a.Values, "; ")),
			a.SubmittedAt.Format(time.RFC3339),
			points,
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[PackHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[PackHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[PackHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// attachmentName формирует имя файла выгрузки с датой
func attachmentName(prefix, ext string) string {
	return fmt.Sprintf("attachment; filename=\"%s_%s.%s\"", prefix, time.Now().Format("2006-01-02"), ext)
}
