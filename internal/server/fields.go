package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

func (s *Server) listFields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fields": s.deps.Fields.All(),
		"count":  s.deps.Fields.Len(),
	})
}

func (s *Server) addField(c *gin.Context) {
	var def schema.FieldDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		s.fail(c, common.InvalidInputError(err.Error()))
		return
	}

	validator := common.NewValidator()
	validator.Field("name", def.Name, common.Required)
	validator.Field("field_type", string(def.FieldType), common.FieldType)
	for _, p := range def.Patterns {
		validator.Field("patterns", p, common.Pattern)
	}
	if err := common.ValidateAndReturnError(validator); err != nil {
		s.fail(c, err)
		return
	}

	if !s.deps.Fields.Add(def) {
		s.fail(c, common.InvalidInputError("field definition rejected"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": def.Name, "count": s.deps.Fields.Len()})
}

func (s *Server) removeField(c *gin.Context) {
	name := c.Param("name")
	if !s.deps.Fields.Remove(name) {
		s.fail(c, common.NotFoundError(fmt.Sprintf("field %s", name)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": name, "count": s.deps.Fields.Len()})
}

func (s *Server) saveFields(c *gin.Context) {
	if s.deps.FieldsPath == "" {
		s.fail(c, common.WrapError(common.ErrUnavailable, "schema persistence"))
		return
	}
	if !s.deps.Fields.Save(s.deps.FieldsPath) {
		s.fail(c, common.InternalError("persist schema"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": s.deps.FieldsPath, "count": s.deps.Fields.Len()})
}
