package handler

import (
	"net/http"
	"time"

	"hokensim-backend/internal/gemini"
	"hokensim-backend/internal/model"
	"hokensim-backend/internal/service"
	"hokensim-backend/internal/utils"
	"hokensim-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// validateChatConfig メッセージとAPIキーの事前検証。問題があれば
// 400を書き込んで false を返す。
func validateChatConfig(c *gin.Context, messages []model.Message, cfg model.ClientConfig) bool {
	if len(messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "メッセージが必要です"})
		return false
	}

	if cfg.APIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Gemini API設定が必要です"})
		return false
	}

	if !gemini.IsValidAPIKey(cfg.APIKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "APIキーの形式が正しくありません"})
		return false
	}

	return true
}

// Chat POST /api/chat?stream=true|false
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validateChatConfig(c, req.Messages, req.Config) {
		return
	}

	if c.Query("stream") == "true" {
		h.streamChat(c, &req)
		return
	}

	content, err := h.chatService.Chat(c.Request.Context(), &req)
	if err != nil {
		logger.Errorf("チャット応答の生成に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "AI応答の生成に失敗しました",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		Success:   true,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// streamChat 累積テキストを data: {"content": ...} フレームで流し、
// 最後に data: {"completed": true} を送る。
func (h *ChatHandler) streamChat(c *gin.Context, req *model.ChatRequest) {
	sseWriter := utils.NewSSEWriter(c.Writer)

	ctx := c.Request.Context()
	chunks, errs := h.chatService.StreamChat(ctx, req)

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// 面談終了の合図が出ていればクライアントに伝える。
				// フィードバック要求を出すかどうかはクライアントの判断
				sseWriter.WriteData(gin.H{
					"completed":      true,
					"session_ending": h.chatService.IsSessionEnding(req),
					"timestamp":      time.Now().Format(time.RFC3339),
				})
				return
			}

			if err := sseWriter.WriteData(gin.H{"content": chunk.Content}); err != nil {
				logger.Errorf("SSE書き込みに失敗: %v", err)
				return
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			// 表示済みの部分テキストはクライアント側で保持される。
			// エラーは追加メッセージとして描画される
			logger.Errorf("ストリーミングエラー: %v", err)
			sseWriter.WriteData(gin.H{"error": err.Error()})
			return

		case <-ctx.Done():
			return
		}
	}
}

// Feedback POST /api/feedback
func (h *ChatHandler) Feedback(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validateChatConfig(c, req.Messages, req.Config) {
		return
	}

	feedback, err := h.chatService.GenerateFeedback(c.Request.Context(), &req)
	if err != nil {
		logger.Errorf("フィードバック生成に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "フィードバックの生成に失敗しました",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.FeedbackResponse{
		Success:   true,
		Feedback:  feedback,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// TestConnection POST /api/test-connection
func (h *ChatHandler) TestConnection(c *gin.Context) {
	var req model.TestConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Config.APIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "APIキーが設定されていません"})
		return
	}

	if err := h.chatService.TestConnection(c.Request.Context(), req.Config); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "接続テストに失敗しました",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Title = ""
	}

	session, err := h.chatService.CreateSession(req.Title, req.ScenarioID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	session, err := h.chatService.GetSession(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.SessionResponse{
		SessionID:    session.ID,
		Title:        session.Title,
		ScenarioID:   session.ScenarioID,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		MessageCount: len(session.Messages),
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.chatService.GetSessionMessages(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	sessions, err := h.chatService.GetAllSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
	})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.chatService.DeleteSession(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *ChatHandler) ClearAllSessions(c *gin.Context) {
	if err := h.chatService.ClearAllSessions(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ChatHandler) UpdateSessionTitle(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req struct {
		Title string `json:"title" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.UpdateSessionTitle(sessionID, req.Title); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Title updated successfully"})
}
