package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/session"
)

// imageField is the multipart form field holding an uploaded image.
const imageField = "image"

func (h *Handler) browseVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendors, err := h.vendors.Browse(r.Context(), vendor.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]vendorResponse, len(vendors))
	for i, v := range vendors {
		out[i] = toVendor(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		v    *vendor.Vendor
		menu []vendor.MenuItem
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		v, err = h.vendors.Get(ctx, id)
		return err
	})
	g.Go(func() (err error) {
		menu, err = h.vendors.Menu(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendorDetailResponse{Vendor: toVendor(*v), Menu: toMenu(menu)})
}

func (h *Handler) vendorProfile(w http.ResponseWriter, r *http.Request, s *session.Session) {
	v, err := h.vendors.Get(r.Context(), s.AccountID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVendor(*v))
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.vendors.SetActive(r.Context(), s.AccountID, req.IsActive); err != nil {
		fail(w, r, err)
		return
	}
	h.vendorProfile(w, r, s)
}

func (h *Handler) uploadVendorImage(w http.ResponseWriter, r *http.Request, s *session.Session) {
	u, done, err := h.readUpload(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer done()

	url, err := h.vendors.UpdateImage(r.Context(), s.AccountID, u)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{ImageURL: url})
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request, s *session.Session) {
	items, err := h.vendors.Menu(r.Context(), s.AccountID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenu(items))
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req menuItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.vendors.CreateItem(r.Context(), s.AccountID, req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItem(*item))
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req menuItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.vendors.UpdateItem(r.Context(), s.AccountID, r.PathValue("id"), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItem(*item))
}

func (h *Handler) deleteMenuItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := h.vendors.DeleteItem(r.Context(), s.AccountID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) uploadMenuItemImage(w http.ResponseWriter, r *http.Request, s *session.Session) {
	u, done, err := h.readUpload(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer done()

	item, err := h.vendors.UploadItemImage(r.Context(), s.AccountID, r.PathValue("id"), u)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItem(*item))
}

// readUpload extracts the image part of a multipart request. The returned
// func releases the file and any temporary storage.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (vendor.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return vendor.Upload{}, nil, badRequest("malformed multipart body")
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, hdr, err := r.FormFile(imageField)
	if err != nil {
		cleanup()
		return vendor.Upload{}, nil, badRequest(fmt.Sprintf("%q file is required", imageField))
	}
	done := func() {
		_ = file.Close()
		cleanup()
	}
	if hdr.Size > h.maxUpload {
		done()
		return vendor.Upload{}, nil, badRequest(fmt.Sprintf("image exceeds %d bytes", h.maxUpload))
	}

	body, contentType, err := sniff(file)
	if err != nil {
		done()
		return vendor.Upload{}, nil, err
	}
	return vendor.Upload{
		Filename:    hdr.Filename,
		ContentType: contentType,
		Size:        hdr.Size,
		Body:        body,
	}, done, nil
}

// sniff detects the content type from the first bytes of the file and
// rejects anything that is not a raster image.
func sniff(file multipart.File) (io.Reader, string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", badRequest("unreadable image")
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", badRequest("file must be an image")
	}
	return io.MultiReader(bytes.NewReader(head), file), contentType, nil
}
