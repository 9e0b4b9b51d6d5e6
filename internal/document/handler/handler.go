// Package handler exposes the signing services over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/service"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/middleware"
)

const maxUploadBytes = 20 << 20

// UnlockHeader carries the token returned by the unlock endpoint.
const UnlockHeader = "X-Unlock-Token"

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterSigningRoutes registers the authenticated routes. The group must
// run middleware.AuthMiddleware.
func (h *Handler) RegisterSigningRoutes(r gin.IRoutes) {
	r.POST("/groups", h.createGroup)
	r.POST("/groups/:groupId/members", h.addMember)
	r.DELETE("/groups/:groupId/members/:userId", h.removeMember)
	r.POST("/groups/:groupId/documents", h.addGroupDocument)
	r.GET("/groups/:groupId/documents/:documentId/signers", h.listSigners)
	r.POST("/groups/:groupId/documents/:documentId/signers", h.assignSigners)
	r.PUT("/groups/:groupId/documents/:documentId/signers", h.updateSigners)
	r.POST("/groups/:groupId/documents/:documentId/signatures", h.saveSignature)
	r.POST("/groups/:groupId/documents/:documentId/reject", h.rejectDocument)
	r.POST("/groups/:groupId/documents/:documentId/finalize", h.finalize)

	r.POST("/documents", h.createDocument)
	r.POST("/documents/:documentId/versions", h.addVersion)

	r.POST("/packages", h.createPackage)
	r.GET("/packages/:packageId", h.getPackage)
	r.POST("/packages/:packageId/documents", h.addPackageDocument)
	r.POST("/packages/:packageId/sign", h.signPackage)
}

// RegisterVerifyRoutes registers the public verification routes behind mws,
// typically a rate limiter.
func (h *Handler) RegisterVerifyRoutes(r gin.IRouter, mws ...gin.HandlerFunc) {
	g := r.Group("/verify", mws...)
	g.GET("/:signatureId", h.verificationInfo)
	g.POST("/:signatureId/unlock", h.unlock)
	g.POST("/:signatureId/file", h.verifyFile)
}

func requireUser(c *gin.Context) (string, bool) {
	uid := middleware.Subject(c)
	ok := uid != ""
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
	}
	return uid, ok
}

func requestContext(c *gin.Context) service.RequestContext {
	return service.RequestContext{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

var statusByKind = map[document.Kind]int{
	document.KindUnauthorized:             http.StatusForbidden,
	document.KindNotFound:                 http.StatusNotFound,
	document.KindIncompleteSignatures:     http.StatusConflict,
	document.KindAlreadyFinalized:         http.StatusConflict,
	document.KindPolicyLimitExceeded:      http.StatusForbidden,
	document.KindDocumentEncrypted:        http.StatusUnprocessableEntity,
	document.KindMissingSignatureConfig:   http.StatusBadRequest,
	document.KindNoSignaturesFound:        http.StatusUnprocessableEntity,
	document.KindIncorrectPin:             http.StatusUnauthorized,
	document.KindLockedOut:                http.StatusLocked,
	document.KindTemporarilyLocked:        http.StatusLocked,
	document.KindCannotRemoveSignedSigner: http.StatusConflict,
	document.KindInvalidTransition:        http.StatusConflict,
	document.KindInvalidInput:             http.StatusBadRequest,
}

func writeError(c *gin.Context, err error) {
	var e *document.Error
	if !errors.As(err, &e) {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": e.Message, "code": e.Kind}
	if e.Limit != 0 {
		body["limit"] = e.Limit
	}
	if e.Remaining != 0 {
		body["remaining"] = e.Remaining
	}
	if e.RetryAfterMinutes != 0 {
		body["retryAfterMinutes"] = e.RetryAfterMinutes
		c.Header("Retry-After", strconv.Itoa(e.RetryAfterMinutes*60))
	}
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	c.JSON(status, body)
}

// readFile returns the "file" form field, bounded by maxUploadBytes.
func readFile(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, false
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return data, true
}

func (h *Handler) createGroup(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.svc.CreateGroup(c.Request.Context(), uid, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) addMember(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		UserID string        `json:"userId" binding:"required"`
		Role   document.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.svc.AddMember(c.Request.Context(), c.Param("groupId"), uid, req.UserID, req.Role, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) removeMember(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), c.Param("groupId"), uid, c.Param("userId"), requestContext(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addGroupDocument(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	data, ok := readFile(c)
	if !ok {
		return
	}
	d, err := h.svc.AddGroupDocument(c.Request.Context(), c.Param("groupId"), uid, c.PostForm("title"), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) createDocument(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	data, ok := readFile(c)
	if !ok {
		return
	}
	d, err := h.svc.CreateDocument(c.Request.Context(), uid, c.PostForm("title"), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) addVersion(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	data, ok := readFile(c)
	if !ok {
		return
	}
	v, err := h.svc.AddDocumentVersion(c.Request.Context(), c.Param("documentId"), uid, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type signersRequest struct {
	SignerIDs []string `json:"signerIds"`
}

func (h *Handler) listSigners(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListSigners(c.Request.Context(), c.Param("groupId"), c.Param("documentId"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) assignSigners(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req signersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.svc.AssignSigners(c.Request.Context(), c.Param("groupId"), c.Param("documentId"), uid, req.SignerIDs, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) updateSigners(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req signersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.svc.UpdateSigners(c.Request.Context(), c.Param("groupId"), c.Param("documentId"), uid, req.SignerIDs, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) saveSignature(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.SignatureInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := h.svc.SaveSignature(c.Request.Context(), c.Param("groupId"), c.Param("documentId"), uid, req, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sig)
}

func (h *Handler) rejectDocument(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// an empty body is a rejection without reason
	_ = c.ShouldBindJSON(&req)
	if err := h.svc.RejectDocument(c.Request.Context(), c.Param("groupId"), c.Param("documentId"), uid, req.Reason, requestContext(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) finalize(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	res, err := h.svc.Finalize(c.Request.Context(), c.Param("groupId"), c.Param("documentId"), uid, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) createPackage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.CreatePackage(c.Request.Context(), uid, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) getPackage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	p, docs, err := h.svc.GetPackage(c.Request.Context(), c.Param("packageId"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": p, "documents": docs})
}

func (h *Handler) addPackageDocument(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		DocumentID string `json:"documentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pd, err := h.svc.AddPackageDocument(c.Request.Context(), c.Param("packageId"), uid, req.DocumentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pd)
}

func (h *Handler) signPackage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Signatures []service.PackageSignatureInput `json:"signatures"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.SignPackage(c.Request.Context(), c.Param("packageId"), uid, req.Signatures, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) verificationInfo(c *gin.Context) {
	info, err := h.svc.VerificationInfo(c.Request.Context(), c.Param("signatureId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) unlock(c *gin.Context) {
	var req struct {
		AccessCode string `json:"accessCode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Unlock(c.Request.Context(), c.Param("signatureId"), req.AccessCode, requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) verifyFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	res, err := h.svc.VerifyFile(c.Request.Context(), c.Param("signatureId"), c.GetHeader(UnlockHeader), io.LimitReader(f, maxUploadBytes))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
