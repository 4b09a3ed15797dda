/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basenana/egress/cmd/apps/apis/apitool"
	"github.com/basenana/egress/pkg/egress"
	"github.com/basenana/egress/pkg/events"
	"github.com/basenana/egress/pkg/types"
	"github.com/basenana/egress/utils"
)

func (s *ServicesV1) PublishJobEvent(gCtx *gin.Context) {
	req := &JobEventRequest{}
	if err := gCtx.ShouldBindJSON(req); err != nil {
		apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, err)
		return
	}

	jobID := gCtx.Param("job")
	evt := events.BuildJobEvent(req.Event,
		types.WebhookContext{TeamID: req.TeamID, JobID: jobID, V0: req.V0},
		types.WebhookPayload{Success: req.Success, Data: req.Data, Error: req.Error},
		req.Webhook,
	)
	evt.SkipTLSVerification = req.SkipTLSVerification

	if req.Sync {
		ctx := utils.WithTraceID(utils.NewApiContext(gCtx.Request), evt.ID)
		if err := s.notify.Deliver(ctx, evt); err != nil {
			utils.ContextLog(ctx, s.logger).Warnw("deliver job event failed", "job", jobID, "event", req.Event, "err", err)
			apitool.ErrorResponse(gCtx, err)
			return
		}
		apitool.JsonResponse(gCtx, http.StatusOK, JobEventResponse{ID: evt.ID})
		return
	}

	if err := events.Publish(evt); err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	apitool.JsonResponse(gCtx, http.StatusAccepted, JobEventResponse{ID: evt.ID, Queued: true})
}

// Probe checks a destination through the strict dispatcher, it never uses the self-hosted variant.
func (s *ServicesV1) Probe(gCtx *gin.Context) {
	req := &ProbeRequest{}
	if err := gCtx.ShouldBindJSON(req); err != nil {
		apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, err)
		return
	}

	d := s.dispatchers.GetDispatcher(types.DispatcherConfig{SkipTLSVerification: req.SkipTLSVerification})
	result := egress.Probe(utils.NewApiContext(gCtx.Request), d, req.URL)
	if result.Error != "" {
		s.logger.Debugw("probe failed", "url", req.URL, "blocked", result.Blocked, "err", result.Error)
	}
	apitool.JsonResponse(gCtx, http.StatusOK, result)
}
