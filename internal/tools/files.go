package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
)

const maxUploadBytes = 25 * 1024 * 1024 // 25MiB, per spec.md §4.5 Files/upload

var allowedFileExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".pdf": true, ".txt": true, ".md": true, ".csv": true, ".json": true,
	".log": true, ".zip": true,
}

// sanitizeFilename strips directory components and control characters
// so an attacker-controlled name cannot traverse outside the upload
// endpoint's namespace.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "upload.bin"
	}
	return cleaned
}

// UploadFile implements files/upload.
func (h *Handlers) UploadFile(ctx context.Context, params map[string]any) (map[string]any, error) {
	filename, _ := params["filename"].(string)
	contentB64, _ := params["content_base64"].(string)
	if filename == "" || contentB64 == "" {
		return nil, newValidationError("parameters \"filename\" and \"content_base64\" are required")
	}

	ext := strings.ToLower(path.Ext(filename))
	if !allowedFileExtensions[ext] {
		return nil, newValidationError(fmt.Sprintf("file extension %q is not permitted", ext))
	}

	content, err := base64.StdEncoding.DecodeString(contentB64)
	if err != nil {
		return nil, newValidationError("content_base64 is not valid base64")
	}
	if len(content) > maxUploadBytes {
		return nil, newValidationError(fmt.Sprintf("file exceeds the %d byte limit", maxUploadBytes))
	}

	safeName := sanitizeFilename(filename)
	bundle, err := h.selectBundle("upload", "")
	if err != nil {
		return nil, err
	}
	uri, err := h.Client.UploadFile(ctx, bundle, safeName, content)
	if err != nil {
		return nil, err
	}

	result := map[string]any{"uri": uri, "filename": safeName}

	if message, ok := params["message"].(string); ok && message != "" {
		to, _ := params["to"].(string)
		topic, _ := params["topic"].(string)
		msgType, _ := params["type"].(string)
		if msgType == "" {
			msgType = "stream"
		}
		body := message + "\n" + uri
		id, serr := h.Client.SendMessage(ctx, bundle, msgType, to, topic, body)
		if serr != nil {
			return nil, serr
		}
		result["message_id"] = id
	}

	return success(result), nil
}

// ManageFiles implements files/manage: list/get/delete/share/download.
// Zulip's REST API only documents uploads (not a file-management CRUD
// surface), so sub-operations beyond what the upload URI itself allows
// report partial_success rather than silently fabricating success.
func (h *Handlers) ManageFiles(ctx context.Context, params map[string]any) (map[string]any, error) {
	action, _ := params["action"].(string)
	switch action {
	case "share":
		uri, _ := params["uri"].(string)
		if uri == "" {
			return nil, newValidationError("parameter \"uri\" is required for share")
		}
		to, _ := params["to"].(string)
		topic, _ := params["topic"].(string)
		msgType, _ := params["type"].(string)
		if msgType == "" {
			msgType = "stream"
		}
		bundle, err := h.selectBundle("send", "")
		if err != nil {
			return nil, err
		}
		id, err := h.Client.SendMessage(ctx, bundle, msgType, to, topic, uri)
		if err != nil {
			return nil, err
		}
		return success(map[string]any{"message_id": id}), nil

	case "download":
		uri, _ := params["uri"].(string)
		if uri == "" {
			return nil, newValidationError("parameter \"uri\" is required for download")
		}
		return success(map[string]any{"uri": uri}), nil

	case "list", "get", "delete":
		return partialSuccess(fmt.Sprintf("file action %q has no dedicated Zulip endpoint; track uploads via their returned uri", action), nil), nil

	default:
		return nil, newValidationError(fmt.Sprintf("unknown manage_files action %q", action))
	}
}
