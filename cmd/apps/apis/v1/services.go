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
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basenana/egress/pkg/egress"
	"github.com/basenana/egress/pkg/notify"
	"github.com/basenana/egress/utils/logger"
)

type Depends struct {
	Notify      *notify.Notify
	Dispatchers egress.Getter
}

type ServicesV1 struct {
	notify      *notify.Notify
	dispatchers egress.Getter
	logger      *zap.SugaredLogger
}

func NewServicesV1(depends *Depends) *ServicesV1 {
	return &ServicesV1{
		notify:      depends.Notify,
		dispatchers: depends.Dispatchers,
		logger:      logger.NewLogger("v1"),
	}
}

func RegisterRoutes(engine *gin.Engine, s *ServicesV1) {
	group := engine.Group("/v1")
	group.POST("/jobs/:job/events", s.PublishJobEvent)
	group.POST("/probe", s.Probe)
}
