// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"net/http"

	"github.com/taibuivan/yomira/internal/platform/middleware"
	"github.com/taibuivan/yomira/internal/userservice"
)

// requestFromHTTP builds the [userservice.Request] every service call
// needs, carrying the caller's IP for activity auditing (spec.md §4.7).
func requestFromHTTP(r *http.Request) userservice.Request {
	req := userservice.Request{
		IP:            middleware.RealIP(r),
		CaptchaPassed: r.Header.Get("X-Captcha-Passed") == "true",
	}
	if view, ok := UserFromContext(r.Context()); ok {
		req.SessionKey = view.Key
	}
	return req
}
