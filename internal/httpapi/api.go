package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

const (
	apiErrorInvalidVote   = "invalid_vote_kind"
	apiErrorUnknownFAQ    = "unknown_faq_entry"
	apiErrorMissingScheme = "missing_scheme_id"
	apiErrorVoteFailed    = "vote_failed"

	jsonKeyItems    = "items"
	jsonKeyItem     = "item"
	jsonKeyRecorded = "recorded"
	jsonKeySaved    = "saved"
	jsonKeySchemeID = "scheme_id"

	logEventAPIVote = "api_faq_vote_failed"
)

type voteRequest struct {
	Kind string `json:"kind" form:"kind"`
}

// APIHandlers are the JSON counterparts of the FAQ and schemes forms, for pages that update in place.
type APIHandlers struct {
	logger *zap.Logger
	engine *faq.Engine
}

func NewAPIHandlers(logger *zap.Logger, engine *faq.Engine) *APIHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandlers{logger: logger, engine: engine}
}

func (handlers *APIHandlers) SearchFAQ(context *gin.Context) {
	language := languageOf(context)
	items := handlers.engine.Search(context.Request.Context(), context.Query(queryFieldQuery), language)
	context.JSON(http.StatusOK, gin.H{jsonKeyItems: items})
}

func (handlers *APIHandlers) VoteFAQ(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
		return
	}
	var request voteRequest
	if bindErr := context.ShouldBind(&request); bindErr != nil {
		context.AbortWithStatusJSON(http.StatusBadRequest, gin.H{jsonKeyError: apiErrorInvalidVote})
		return
	}
	result, voteErr := handlers.engine.Vote(pageContext.Store, strings.TrimSpace(context.Param(routeParamID)), request.Kind, pageContext.Language)
	switch {
	case errors.Is(voteErr, faq.ErrInvalidVoteKind):
		context.AbortWithStatusJSON(http.StatusBadRequest, gin.H{jsonKeyError: apiErrorInvalidVote})
		return
	case errors.Is(voteErr, faq.ErrUnknownEntry):
		context.AbortWithStatusJSON(http.StatusNotFound, gin.H{jsonKeyError: apiErrorUnknownFAQ})
		return
	case voteErr != nil:
		handlers.logger.Warn(logEventAPIVote, zap.Error(voteErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: apiErrorVoteFailed})
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeyRecorded: result.Recorded, jsonKeyItem: result.Item})
}

func (handlers *APIHandlers) ToggleSavedScheme(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
		return
	}
	schemeID := strings.TrimSpace(context.Param(routeParamID))
	if schemeID == "" {
		context.AbortWithStatusJSON(http.StatusBadRequest, gin.H{jsonKeyError: apiErrorMissingScheme})
		return
	}
	saved := prefs.ToggleSavedScheme(pageContext.Store, schemeID)
	context.JSON(http.StatusOK, gin.H{jsonKeySchemeID: schemeID, jsonKeySaved: saved})
}
