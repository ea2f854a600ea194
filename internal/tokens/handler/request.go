package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes — запросы сервиса крошечные, больше 64KB не нужно.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("empty body")

// decodeJSON читает тело с ограничением размера. Пустое тело — errEmptyBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// missingField — текст 422 для незаполненного обязательного поля.
func missingField(name string) string {
	return "Field required: " + name
}
