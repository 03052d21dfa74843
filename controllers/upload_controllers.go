package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type UploadController struct {
	Proofs *services.ProofService
}

func NewUploadController(proofs *services.ProofService) *UploadController {
	return &UploadController{Proofs: proofs}
}

// UploadProof takes a multipart form with file, order_id and payment_id.
func (uc *UploadController) UploadProof(c *gin.Context) {
	// headroom for the form fields around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxProofSize+1<<20)
	if err := c.Request.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(c, http.StatusRequestEntityTooLarge, services.ErrProofTooLarge)
			return
		}
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	orderRaw, paymentID := c.PostForm("order_id"), c.PostForm("payment_id")
	if orderRaw == "" || paymentID == "" {
		utils.RespondErrorRedirect(c, http.StatusBadRequest, services.ErrMissingContext, safeScreen(0))
		return
	}
	orderID, err := parseID(orderRaw)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("file is required"))
		return
	}
	if header.Size > services.MaxProofSize {
		utils.RespondError(c, http.StatusRequestEntityTooLarge, services.ErrProofTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer file.Close()

	url, err := uc.Proofs.Submit(c.Request.Context(), services.ProofUpload{
		OrderID:     orderID,
		PaymentID:   paymentID,
		File:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment proof uploaded", gin.H{"proof_url": url})
}
