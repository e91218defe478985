package types

// CandidateProfile 结构化的候选人档案，LLM 生成或由启发式结果转换得到
type CandidateProfile struct {
	PersonalInfo   PersonalInfo      `json:"personal_info"`
	Skills         ProfileSkills     `json:"skills"`
	Education      []EducationEntry  `json:"education"`
	Experience     []ExperienceEntry `json:"experience"`
	Projects       []ProjectEntry    `json:"projects"`
	Certifications []string          `json:"certifications,omitempty"`
}

// PersonalInfo 个人基本信息
type PersonalInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
}

// ProfileSkills 档案中的技能，只区分技术与软技能
type ProfileSkills struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
}

// EducationEntry 单条教育经历
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
	Description string `json:"description"`
}

// ExperienceEntry 单条工作经历
type ExperienceEntry struct {
	Position    string `json:"position"`
	Company     string `json:"company"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

// ProjectEntry 项目经历
type ProjectEntry struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// ExtractionMethod 档案来源
type ExtractionMethod string

const (
	ExtractionHeuristic ExtractionMethod = "heuristic"
	ExtractionLLM       ExtractionMethod = "llm"
)

// DocumentCategory 上传文档的业务类别
type DocumentCategory string

const (
	CategoryCV                 DocumentCategory = "cv"
	CategoryAcademicTranscript DocumentCategory = "academic_transcript"
	CategoryProfessionalPhoto  DocumentCategory = "professional_photo"
	CategoryQualification      DocumentCategory = "qualification"
)

// ValidCategory 判断类别是否合法
func ValidCategory(c DocumentCategory) bool {
	switch c {
	case CategoryCV, CategoryAcademicTranscript, CategoryProfessionalPhoto, CategoryQualification:
		return true
	}
	return false
}

// ProfileFromAnalysis 把启发式分析结果转换为档案。
// 分析结果中的各字段互不关联，这里按下标对齐，仅作为没有 LLM 时的兜底。
func ProfileFromAnalysis(r *AnalysisResult) CandidateProfile {
	p := CandidateProfile{
		Education:  []EducationEntry{},
		Experience: []ExperienceEntry{},
		Projects:   []ProjectEntry{},
		Skills:     ProfileSkills{Technical: []string{}, Soft: []string{}},
	}
	if r == nil {
		return p
	}

	p.PersonalInfo = PersonalInfo{
		Email:    r.ContactInfo.Email,
		Phone:    r.ContactInfo.Phone,
		Location: r.ContactInfo.Location,
	}
	p.Skills.Technical = append(append(p.Skills.Technical, r.Skills.Technical...), r.Skills.Tools...)
	p.Skills.Soft = append(p.Skills.Soft, r.Skills.Soft...)

	edu := r.Education
	for i := 0; i < maxLen(len(edu.Degrees), len(edu.Institutions), len(edu.Years)); i++ {
		p.Education = append(p.Education, EducationEntry{
			Degree:      at(edu.Degrees, i),
			Institution: at(edu.Institutions, i),
			Year:        at(edu.Years, i),
		})
	}

	exp := r.Experience
	for i := 0; i < maxLen(len(exp.Positions), len(exp.Companies), len(exp.Durations)); i++ {
		p.Experience = append(p.Experience, ExperienceEntry{
			Position: at(exp.Positions, i),
			Company:  at(exp.Companies, i),
			Period:   at(exp.Durations, i),
		})
	}
	if len(exp.Positions) > 0 {
		p.PersonalInfo.Title = exp.Positions[0]
	}
	return p
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func maxLen(lengths ...int) int {
	m := 0
	for _, l := range lengths {
		if l > m {
			m = l
		}
	}
	return m
}
